package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-wisata/internal/events"
	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/store"
	"github.com/noah-isme/backend-wisata/internal/tasks"
)

// ReconcileStore adds payment lookup to the dispatcher's store slice.
type ReconcileStore interface {
	Recorder
	GetPayment(ctx context.Context, id string) (store.Payment, error)
}

// Reconciler resolves settlements stuck in the pending sub-state by polling
// the vault for transaction confirmation. Retries are driven by asynq; once
// the retry budget is spent an unconfirmed settlement is marked failed so
// the user can explicitly retry, rather than waiting indefinitely.
type Reconciler struct {
	Store  ReconcileStore
	Vault  VaultProvider
	Events *events.Bus
	Logger zerolog.Logger
}

// HandleSettlementReconcile is the asynq handler for pending settlements.
func (r *Reconciler) HandleSettlementReconcile(ctx context.Context, t *asynq.Task) error {
	var payload tasks.SettlementReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("reconcile: decode payload: %w", err)
	}
	p, err := r.Store.GetPayment(ctx, payload.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if p.Status != store.PaymentStatusPending {
		recordReconcile("already_resolved")
		return nil
	}

	status, err := r.Vault.TransactionStatus(ctx, p.TxHash)
	if err != nil {
		recordReconcile("lookup_error")
		return r.failIfExhausted(ctx, p, fmt.Errorf("reconcile: tx status: %w", err))
	}
	switch status {
	case VaultTxConfirmed:
		if err := r.settle(ctx, p); err != nil {
			return err
		}
		recordReconcile("confirmed")
		r.Logger.Info().Str("payment_id", p.ID).Str("tx_hash", p.TxHash).Msg("vault settlement confirmed")
		return nil
	case VaultTxFailed:
		r.fail(ctx, p, "transaction failed on chain")
		recordReconcile("failed")
		return nil
	default:
		recordReconcile("still_pending")
		return r.failIfExhausted(ctx, p, errors.New("reconcile: transaction still pending"))
	}
}

// failIfExhausted re-queues via the returned error until the final attempt,
// then gives up and marks the settlement failed.
func (r *Reconciler) failIfExhausted(ctx context.Context, p store.Payment, cause error) error {
	retried, retriedOK := asynq.GetRetryCount(ctx)
	maxRetry, maxOK := asynq.GetMaxRetry(ctx)
	if retriedOK && maxOK && retried >= maxRetry {
		r.fail(ctx, p, "confirmation window elapsed")
		return nil
	}
	return cause
}

// RefreshPending polls the vault once for an on-demand status check. Only a
// confirmed or failed transaction changes anything; a still-pending transfer
// is left for the scheduled reconciliation to chase.
func (r *Reconciler) RefreshPending(ctx context.Context, p store.Payment) (store.Payment, bool) {
	if p.Status != store.PaymentStatusPending || p.TxHash == "" {
		return p, false
	}
	status, err := r.Vault.TransactionStatus(ctx, p.TxHash)
	if err != nil {
		return p, false
	}
	switch status {
	case VaultTxConfirmed:
		if err := r.settle(ctx, p); err != nil {
			return p, false
		}
		recordReconcile("confirmed")
		p.Status = store.PaymentStatusPaid
		return p, true
	case VaultTxFailed:
		r.fail(ctx, p, "transaction failed on chain")
		recordReconcile("failed")
		p.Status = store.PaymentStatusFailed
		return p, true
	default:
		return p, false
	}
}

func (r *Reconciler) settle(ctx context.Context, p store.Payment) error {
	if err := r.Store.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusPaid, "", ""); err != nil {
		return err
	}
	topic := events.TopicBookingPaid
	switch p.RefKind {
	case store.RefKindBooking:
		if err := r.Store.UpdateBookingStatus(ctx, p.RefID, store.BookingStatusPaid); err != nil {
			return err
		}
	case store.RefKindCart:
		if err := r.Store.UpdateCartBookingStatuses(ctx, p.RefID, store.BookingStatusPaid); err != nil {
			return err
		}
		if err := r.Store.SetCartStatus(ctx, p.RefID, store.CartStatusCheckedOut); err != nil {
			return err
		}
		topic = events.TopicCartCheckedOut
	}
	if r.Events != nil {
		_, _ = r.Events.Emit(ctx, topic, p.RefID, map[string]any{
			"paymentId": p.ID,
			"method":    p.Method,
			"amount":    p.Amount,
			"txHash":    p.TxHash,
		})
	}
	return nil
}

// fail leaves the booking or cart in its pending-payment state so the trip
// can be retried without re-composing it.
func (r *Reconciler) fail(ctx context.Context, p store.Payment, reason string) {
	if err := r.Store.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusFailed, "", ""); err != nil {
		r.Logger.Error().Err(err).Str("payment_id", p.ID).Msg("mark settlement failed")
		return
	}
	if r.Events != nil {
		_, _ = r.Events.Emit(ctx, events.TopicPaymentFailed, p.RefID, map[string]any{
			"paymentId": p.ID,
			"method":    p.Method,
			"reason":    reason,
		})
	}
	r.Logger.Warn().Str("payment_id", p.ID).Str("tx_hash", p.TxHash).Str("reason", reason).Msg("vault settlement failed")
}

func recordReconcile(result string) {
	if obs.SettlementReconcileTotal != nil {
		obs.SettlementReconcileTotal.WithLabelValues(result).Inc()
	}
}

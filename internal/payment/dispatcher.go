package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/events"
	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// Recorder is the slice of the store the dispatcher needs.
type Recorder interface {
	CreatePayment(ctx context.Context, p store.Payment) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, status store.PaymentStatus, providerRef, txHash string) error
	GetLatestPaymentByRef(ctx context.Context, kind store.RefKind, refID string) (store.Payment, error)
	UpdateBookingStatus(ctx context.Context, id string, status store.BookingStatus) error
	UpdateCartBookingStatuses(ctx context.Context, cartID string, status store.BookingStatus) error
	SetCartStatus(ctx context.Context, id string, status store.CartStatus) error
}

// Ledger debits the internal savings balance. The balance check happens
// inside the debit, server-side; client-held balances are advisory only.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (pricing.Money, error)
	DebitBalance(ctx context.Context, userID string, amount pricing.Money, ref string) error
}

// RateSource converts stable units to local currency minor units.
type RateSource interface {
	Rate(ctx context.Context, base, quote string) (pricing.Money, string, error)
}

// ReconcileScheduler schedules background polling for pending settlements.
type ReconcileScheduler interface {
	EnqueueSettlementReconcile(ctx context.Context, paymentID string) error
}

// Request asks the dispatcher to settle a booking or cart checkout.
type Request struct {
	RefKind         store.RefKind
	RefID           string
	UserID          string
	Method          Method
	Total           pricing.Money
	DiscountedTotal pricing.Money
	Wallet          string
}

// Outcome is the dispatcher's answer. Status PENDING means the settlement
// was dispatched but confirmation is unknown; it is distinct from both
// success and failure and blocks further charge attempts until resolved.
type Outcome struct {
	Payment store.Payment
	Status  store.PaymentStatus
}

// Dispatcher decides payment-method eligibility and routes to the matching
// collaborator. Exactly one of the three backends is invoked per dispatch.
type Dispatcher struct {
	Store      Recorder
	Ledger     Ledger
	Card       CardProvider
	Vault      VaultProvider
	Rates      RateSource
	Events     *events.Bus
	Reconciler ReconcileScheduler
	StablePair [2]string
	Logger     zerolog.Logger
}

// ErrAlreadyPaid is returned when the reference has a settled payment.
var ErrAlreadyPaid = errors.New("payment: already paid")

// Amount returns what the method would charge: the discounted total for
// savings, the full total otherwise.
func Amount(method Method, total, discountedTotal pricing.Money) pricing.Money {
	if method == MethodSavings {
		return discountedTotal
	}
	return total
}

// Dispatch routes the request to the chosen backend. A zero amount bypasses
// every provider and settles immediately; the empty trip is still a valid
// trip. Ineligible selections fail before any collaborator is called.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	if d == nil || d.Store == nil {
		return Outcome{}, errors.New("payment dispatcher not configured")
	}
	ctx, span := otel.Tracer("payment.Dispatcher").Start(ctx, "Dispatcher.Dispatch")
	defer span.End()

	result := "error"
	start := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.String("payment.method", string(req.Method)),
			attribute.String("payment.ref_kind", string(req.RefKind)),
			attribute.String("payment.result", result),
			attribute.Float64("payment.dispatch.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.PaymentDispatchTotal != nil {
			obs.PaymentDispatchTotal.WithLabelValues(string(req.Method), result).Inc()
		}
	}()

	if !req.Method.Valid() {
		return Outcome{}, common.ValidationError("unsupported payment method", map[string]string{
			"method": fmt.Sprintf("unknown method %q", req.Method),
		})
	}
	if err := d.guardExisting(ctx, req); err != nil {
		return Outcome{}, err
	}

	amount := Amount(req.Method, req.Total, req.DiscountedTotal)
	if amount == 0 {
		out, err := d.settleZero(ctx, req)
		if err == nil {
			result = "success"
		}
		return out, err
	}

	var (
		out Outcome
		err error
	)
	switch req.Method {
	case MethodCard:
		out, err = d.dispatchCard(ctx, req, amount)
	case MethodSavings:
		out, err = d.dispatchSavings(ctx, req, amount)
	case MethodVault:
		out, err = d.dispatchVault(ctx, req, amount)
	}
	if err != nil {
		span.RecordError(err)
		appErr := common.AsAppError(err)
		if appErr.Code == common.CodeEligibility {
			result = "ineligible"
		}
		return out, err
	}
	if out.Status == store.PaymentStatusPending {
		result = "pending"
	} else {
		result = "success"
	}
	return out, nil
}

// guardExisting blocks a second charge while a prior settlement is pending
// or after one succeeded.
func (d *Dispatcher) guardExisting(ctx context.Context, req Request) error {
	existing, err := d.Store.GetLatestPaymentByRef(ctx, req.RefKind, req.RefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	switch existing.Status {
	case store.PaymentStatusPaid:
		return common.NewAppError(common.CodeEligibility, "already paid", 409, ErrAlreadyPaid)
	case store.PaymentStatusPending:
		return common.SettlementPending("a settlement is awaiting confirmation for this " + string(req.RefKind))
	}
	return nil
}

func (d *Dispatcher) settleZero(ctx context.Context, req Request) (Outcome, error) {
	p, err := d.Store.CreatePayment(ctx, store.Payment{
		RefKind:     req.RefKind,
		RefID:       req.RefID,
		UserID:      req.UserID,
		Method:      string(req.Method),
		Amount:      0,
		Status:      store.PaymentStatusPaid,
		ProviderRef: "none",
	})
	if err != nil {
		return Outcome{}, err
	}
	if err := d.markSettled(ctx, req); err != nil {
		return Outcome{}, err
	}
	d.emitSettled(ctx, req, p)
	return Outcome{Payment: p, Status: store.PaymentStatusPaid}, nil
}

func (d *Dispatcher) dispatchCard(ctx context.Context, req Request, amount pricing.Money) (Outcome, error) {
	if d.Card == nil {
		return Outcome{}, errors.New("payment: card provider not configured")
	}
	p, err := d.Store.CreatePayment(ctx, store.Payment{
		RefKind: req.RefKind,
		RefID:   req.RefID,
		UserID:  req.UserID,
		Method:  string(req.Method),
		Amount:  amount,
		Status:  store.PaymentStatusPending,
	})
	if err != nil {
		return Outcome{}, err
	}
	res, err := d.Card.Charge(ctx, CardCharge{
		Reference: p.ID,
		UserID:    req.UserID,
		Amount:    amount,
		Currency:  "IDR",
	})
	if err != nil {
		d.failPayment(ctx, p.ID, req)
		return Outcome{}, common.CollaboratorError("card processor unavailable", err)
	}
	if !res.Approved {
		d.failPayment(ctx, p.ID, req)
		reason := res.Reason
		if reason == "" {
			reason = "card declined"
		}
		return Outcome{}, common.EligibilityError(reason)
	}
	if err := d.Store.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusPaid, res.ProviderRef, ""); err != nil {
		return Outcome{}, err
	}
	if err := d.markSettled(ctx, req); err != nil {
		return Outcome{}, err
	}
	p.Status = store.PaymentStatusPaid
	p.ProviderRef = res.ProviderRef
	d.emitSettled(ctx, req, p)
	return Outcome{Payment: p, Status: store.PaymentStatusPaid}, nil
}

func (d *Dispatcher) dispatchSavings(ctx context.Context, req Request, amount pricing.Money) (Outcome, error) {
	if d.Ledger == nil {
		return Outcome{}, errors.New("payment: ledger not configured")
	}
	balance, err := d.Ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return Outcome{}, common.CollaboratorError("balance lookup failed", err)
	}
	if balance < amount {
		return Outcome{}, common.EligibilityError(
			fmt.Sprintf("savings balance %d is below the discounted total %d", balance, amount))
	}
	p, err := d.Store.CreatePayment(ctx, store.Payment{
		RefKind: req.RefKind,
		RefID:   req.RefID,
		UserID:  req.UserID,
		Method:  string(req.Method),
		Amount:  amount,
		Status:  store.PaymentStatusPending,
	})
	if err != nil {
		return Outcome{}, err
	}
	// the debit re-validates the balance atomically; the read above is
	// advisory only
	if err := d.Ledger.DebitBalance(ctx, req.UserID, amount, p.ID); err != nil {
		d.failPayment(ctx, p.ID, req)
		if errors.Is(err, store.ErrInsufficientBalance) {
			return Outcome{}, common.EligibilityError("savings balance changed and no longer covers the discounted total")
		}
		return Outcome{}, common.CollaboratorError("savings debit failed", err)
	}
	if err := d.Store.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusPaid, "ledger", ""); err != nil {
		return Outcome{}, err
	}
	if err := d.markSettled(ctx, req); err != nil {
		return Outcome{}, err
	}
	p.Status = store.PaymentStatusPaid
	d.emitSettled(ctx, req, p)
	return Outcome{Payment: p, Status: store.PaymentStatusPaid}, nil
}

func (d *Dispatcher) dispatchVault(ctx context.Context, req Request, amount pricing.Money) (Outcome, error) {
	if d.Vault == nil || d.Rates == nil {
		return Outcome{}, errors.New("payment: vault provider not configured")
	}
	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return Outcome{}, common.ValidationError("wallet address is required for vault payment", map[string]string{
			"walletAddress": "required",
		})
	}
	stableBalance, err := d.Vault.BalanceOf(ctx, wallet)
	if err != nil {
		return Outcome{}, common.CollaboratorError("vault balance lookup failed", err)
	}
	rate, source, err := d.Rates.Rate(ctx, d.StablePair[0], d.StablePair[1])
	if err != nil || rate <= 0 {
		return Outcome{}, common.CollaboratorError("conversion rate unavailable", err)
	}
	localValue := stableBalance * rate / 100
	if localValue < amount {
		return Outcome{}, common.EligibilityError(
			fmt.Sprintf("vault balance covers %d but %d is required", localValue, amount))
	}
	// round up so the transfer never under-pays after conversion
	stableNeeded := (amount*100 + rate - 1) / rate

	// the pending row must exist before any call that can move funds:
	// once a transfer is in flight, a retry has to be blocked even if this
	// process dies before learning the tx hash
	p, err := d.Store.CreatePayment(ctx, store.Payment{
		RefKind: req.RefKind,
		RefID:   req.RefID,
		UserID:  req.UserID,
		Method:  string(req.Method),
		Amount:  amount,
		Status:  store.PaymentStatusPending,
	})
	if err != nil {
		return Outcome{}, err
	}

	allowance, err := d.Vault.Allowance(ctx, wallet)
	if err != nil {
		d.failPayment(ctx, p.ID, req)
		return Outcome{}, common.CollaboratorError("vault allowance lookup failed", err)
	}
	if allowance < stableNeeded {
		if _, err := d.Vault.Approve(ctx, wallet, stableNeeded); err != nil {
			d.failPayment(ctx, p.ID, req)
			return Outcome{}, common.CollaboratorError("vault approve failed", err)
		}
	}
	txHash, err := d.Vault.Transfer(ctx, wallet, stableNeeded)
	if err != nil {
		d.failPayment(ctx, p.ID, req)
		return Outcome{}, common.CollaboratorError("vault transfer failed", err)
	}
	if err := d.Store.UpdatePaymentStatus(ctx, p.ID, store.PaymentStatusPending, "", txHash); err != nil {
		return Outcome{}, err
	}
	p.TxHash = txHash
	if d.Reconciler != nil {
		if err := d.Reconciler.EnqueueSettlementReconcile(ctx, p.ID); err != nil {
			d.Logger.Error().Err(err).Str("payment_id", p.ID).Msg("enqueue settlement reconcile failed")
		}
	}
	if d.Events != nil {
		_, _ = d.Events.Emit(ctx, events.TopicPaymentPending, req.RefID, map[string]any{
			"paymentId":  p.ID,
			"txHash":     txHash,
			"amount":     amount,
			"rateSource": source,
		})
	}
	d.Logger.Info().
		Str("payment_id", p.ID).
		Str("tx_hash", txHash).
		Str("rate_source", source).
		Msg("vault settlement dispatched, awaiting confirmation")
	return Outcome{Payment: p, Status: store.PaymentStatusPending}, nil
}

// markSettled transitions the paid reference: a booking goes to PAID, a cart
// is checked out together with every booking in it.
func (d *Dispatcher) markSettled(ctx context.Context, req Request) error {
	switch req.RefKind {
	case store.RefKindBooking:
		return d.Store.UpdateBookingStatus(ctx, req.RefID, store.BookingStatusPaid)
	case store.RefKindCart:
		if err := d.Store.UpdateCartBookingStatuses(ctx, req.RefID, store.BookingStatusPaid); err != nil {
			return err
		}
		return d.Store.SetCartStatus(ctx, req.RefID, store.CartStatusCheckedOut)
	default:
		return fmt.Errorf("payment: unknown ref kind %q", req.RefKind)
	}
}

// failPayment records the failed attempt. The booking or cart keeps its
// pending-payment state so the user can retry without re-composing the trip.
func (d *Dispatcher) failPayment(ctx context.Context, paymentID string, req Request) {
	if err := d.Store.UpdatePaymentStatus(ctx, paymentID, store.PaymentStatusFailed, "", ""); err != nil {
		d.Logger.Error().Err(err).Str("payment_id", paymentID).Msg("mark payment failed")
	}
	if d.Events != nil {
		_, _ = d.Events.Emit(ctx, events.TopicPaymentFailed, req.RefID, map[string]any{
			"paymentId": paymentID,
			"method":    req.Method,
		})
	}
}

func (d *Dispatcher) emitSettled(ctx context.Context, req Request, p store.Payment) {
	if d.Events == nil {
		return
	}
	topic := events.TopicBookingPaid
	if req.RefKind == store.RefKindCart {
		topic = events.TopicCartCheckedOut
	}
	_, _ = d.Events.Emit(ctx, topic, req.RefID, map[string]any{
		"paymentId": p.ID,
		"method":    p.Method,
		"amount":    p.Amount,
	})
}

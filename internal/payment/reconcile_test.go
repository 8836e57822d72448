package payment_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/store"
	"github.com/noah-isme/backend-wisata/internal/tasks"
)

func reconcileTask(t *testing.T, paymentID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(tasks.SettlementReconcilePayload{PaymentID: paymentID})
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeSettlementReconcile, payload)
}

func pendingVaultPayment(t *testing.T, st *fakeStore, bookingID string) store.Payment {
	t.Helper()
	p, err := st.CreatePayment(context.Background(), store.Payment{
		RefKind: store.RefKindBooking,
		RefID:   bookingID,
		Method:  string(payment.MethodVault),
		Amount:  390_000,
		Status:  store.PaymentStatusPending,
		TxHash:  "0xdeadbeef",
	})
	require.NoError(t, err)
	return p
}

func TestReconcileConfirmedSettlesBooking(t *testing.T) {
	st := newFakeStore()
	bookingID := uuid.NewString()
	p := pendingVaultPayment(t, st, bookingID)

	r := &payment.Reconciler{
		Store:  st,
		Vault:  &fakeVault{txStatus: payment.VaultTxConfirmed},
		Logger: zerolog.Nop(),
	}
	require.NoError(t, r.HandleSettlementReconcile(context.Background(), reconcileTask(t, p.ID)))

	got, err := st.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPaid, got.Status)
	require.Equal(t, store.BookingStatusPaid, st.bookingStatus[bookingID])
}

func TestReconcileFailedTxKeepsBookingForRetry(t *testing.T) {
	st := newFakeStore()
	bookingID := uuid.NewString()
	p := pendingVaultPayment(t, st, bookingID)

	r := &payment.Reconciler{
		Store:  st,
		Vault:  &fakeVault{txStatus: payment.VaultTxFailed},
		Logger: zerolog.Nop(),
	}
	require.NoError(t, r.HandleSettlementReconcile(context.Background(), reconcileTask(t, p.ID)))

	got, err := st.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusFailed, got.Status)
	require.Empty(t, st.bookingStatus, "booking keeps its pending-payment state")
}

func TestReconcileStillPendingRequeues(t *testing.T) {
	st := newFakeStore()
	p := pendingVaultPayment(t, st, uuid.NewString())

	r := &payment.Reconciler{
		Store:  st,
		Vault:  &fakeVault{txStatus: payment.VaultTxPending},
		Logger: zerolog.Nop(),
	}
	err := r.HandleSettlementReconcile(context.Background(), reconcileTask(t, p.ID))
	require.Error(t, err, "a pending tx must be retried, not resolved")

	got, err := st.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPending, got.Status)
}

func TestRefreshPendingSettlesConfirmedTransfer(t *testing.T) {
	st := newFakeStore()
	bookingID := uuid.NewString()
	p := pendingVaultPayment(t, st, bookingID)

	r := &payment.Reconciler{
		Store:  st,
		Vault:  &fakeVault{txStatus: payment.VaultTxConfirmed},
		Logger: zerolog.Nop(),
	}
	refreshed, changed := r.RefreshPending(context.Background(), p)
	require.True(t, changed)
	require.Equal(t, store.PaymentStatusPaid, refreshed.Status)
	require.Equal(t, store.BookingStatusPaid, st.bookingStatus[bookingID])
}

func TestRefreshPendingLeavesUnconfirmedTransfer(t *testing.T) {
	st := newFakeStore()
	p := pendingVaultPayment(t, st, uuid.NewString())

	r := &payment.Reconciler{
		Store:  st,
		Vault:  &fakeVault{txStatus: payment.VaultTxPending},
		Logger: zerolog.Nop(),
	}
	_, changed := r.RefreshPending(context.Background(), p)
	require.False(t, changed)

	got, err := st.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPending, got.Status)
}

func TestReconcileResolvedPaymentIsNoop(t *testing.T) {
	st := newFakeStore()
	p, err := st.CreatePayment(context.Background(), store.Payment{
		RefKind: store.RefKindBooking,
		RefID:   uuid.NewString(),
		Status:  store.PaymentStatusPaid,
	})
	require.NoError(t, err)

	r := &payment.Reconciler{Store: st, Vault: &fakeVault{}, Logger: zerolog.Nop()}
	require.NoError(t, r.HandleSettlementReconcile(context.Background(), reconcileTask(t, p.ID)))
}

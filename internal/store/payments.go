package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus reflects the dispatcher's view of a settlement.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// RefKind distinguishes what a payment settles.
type RefKind string

const (
	RefKindBooking RefKind = "booking"
	RefKindCart    RefKind = "cart"
)

// Payment is one settlement attempt against a booking or a cart.
type Payment struct {
	ID          string
	RefKind     RefKind
	RefID       string
	UserID      string
	Method      string
	Amount      int64
	Status      PaymentStatus
	ProviderRef string
	TxHash      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const paymentColumns = `id, ref_kind, ref_id, user_id, method, amount, status,
	provider_ref, tx_hash, created_at, updated_at`

// CreatePayment records a settlement attempt.
func (s *Store) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO payments (id, ref_kind, ref_id, user_id, method, amount, status, provider_ref, tx_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+paymentColumns,
		p.ID, p.RefKind, p.RefID, p.UserID, p.Method, p.Amount, p.Status, p.ProviderRef, p.TxHash)
	return scanPayment(row)
}

// GetPayment loads one payment by id.
func (s *Store) GetPayment(ctx context.Context, id string) (Payment, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// GetLatestPaymentByRef returns the most recent payment for a booking or cart.
func (s *Store) GetLatestPaymentByRef(ctx context.Context, kind RefKind, refID string) (Payment, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE ref_kind = $1 AND ref_id = $2
		ORDER BY created_at DESC LIMIT 1`, kind, refID)
	return scanPayment(row)
}

// UpdatePaymentStatus transitions a payment and records provider references.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus, providerRef, txHash string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE payments SET status = $2,
			provider_ref = COALESCE(NULLIF($3, ''), provider_ref),
			tx_hash = COALESCE(NULLIF($4, ''), tx_hash),
			updated_at = now()
		WHERE id = $1`, id, status, providerRef, txHash)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.RefKind, &p.RefID, &p.UserID, &p.Method, &p.Amount, &p.Status,
		&p.ProviderRef, &p.TxHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Payment{}, mapError(err)
	}
	return p, nil
}

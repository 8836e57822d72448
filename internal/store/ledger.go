package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetBalance returns the user's savings balance in minor units. A missing
// account reads as zero.
func (s *Store) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.Pool.QueryRow(ctx,
		`SELECT balance FROM savings_accounts WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, mapError(err)
	}
	return balance, nil
}

// DebitBalance atomically withdraws from the savings account. The balance
// check happens inside the UPDATE, so the client-held balance is never the
// authority; ErrInsufficientBalance is returned when the guard fails.
func (s *Store) DebitBalance(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return nil
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE savings_accounts SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2`, userID, amount)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO savings_entries (id, user_id, amount, ref)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), userID, -amount, ref); err != nil {
		return mapError(err)
	}
	return tx.Commit(ctx)
}

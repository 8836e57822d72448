package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CartStatus tracks a cart through checkout.
type CartStatus string

const (
	CartStatusActive     CartStatus = "ACTIVE"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
)

// Cart groups committed-but-unpaid bookings checked out as one payment.
type Cart struct {
	ID        string
	UserID    string
	Status    CartStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetActiveCartByUser returns the user's single active cart.
func (s *Store) GetActiveCartByUser(ctx context.Context, userID string) (Cart, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, status, created_at, updated_at
		FROM carts WHERE user_id = $1 AND status = $2`,
		userID, CartStatusActive)
	return scanCart(row)
}

// EnsureActiveCart loads or creates the active cart for a user.
func (s *Store) EnsureActiveCart(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.GetActiveCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Cart{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, status, created_at, updated_at`,
		uuid.NewString(), userID, CartStatusActive)
	cart, err = scanCart(row)
	if errors.Is(err, ErrConflict) {
		// lost a race creating the cart, load the winner
		return s.GetActiveCartByUser(ctx, userID)
	}
	return cart, err
}

// GetCart loads one cart by id.
func (s *Store) GetCart(ctx context.Context, id string) (Cart, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, status, created_at, updated_at FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// SetCartStatus transitions the cart.
func (s *Store) SetCartStatus(ctx context.Context, id string, status CartStatus) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE carts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, mapError(err)
	}
	return c, nil
}

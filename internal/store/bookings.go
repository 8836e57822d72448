package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	BookingStatusInCart         BookingStatus = "IN_CART"
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusPaid           BookingStatus = "PAID"
	BookingStatusCanceled       BookingStatus = "CANCELED"
)

// BookedActivity is one activity line frozen into a booking snapshot.
type BookedActivity struct {
	ActivityID string `json:"activityId"`
	Price      int64  `json:"price"`
	Sessions   int    `json:"sessions"`
}

// Booking is a committed draft snapshot. TotalCost is computed server-side at
// commit time and is the only total ever charged.
type Booking struct {
	ID             string
	UserID         string
	DestinationID  string
	Status         BookingStatus
	StartDate      time.Time
	EndDate        time.Time
	Origin         string
	RouteID        string
	HotelID        string
	Activities     []BookedActivity
	SkipTransport  bool
	SkipHotel      bool
	SkipActivities bool
	TotalCost      int64
	DiscountedCost int64
	Currency       string
	CartID         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const bookingColumns = `id, user_id, destination_id, status, start_date, end_date,
	origin, route_id, hotel_id, activities, skip_transport, skip_hotel, skip_activities,
	total_cost, discounted_cost, currency, cart_id, created_at, updated_at`

// CreateBooking inserts a booking snapshot and returns the stored row.
func (s *Store) CreateBooking(ctx context.Context, b Booking) (Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	activities, err := json.Marshal(b.Activities)
	if err != nil {
		return Booking{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, destination_id, status, start_date, end_date,
			origin, route_id, hotel_id, activities, skip_transport, skip_hotel, skip_activities,
			total_cost, discounted_cost, currency, cart_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING `+bookingColumns,
		b.ID, b.UserID, b.DestinationID, b.Status, b.StartDate, b.EndDate,
		b.Origin, b.RouteID, b.HotelID, activities, b.SkipTransport, b.SkipHotel, b.SkipActivities,
		b.TotalCost, b.DiscountedCost, b.Currency, b.CartID,
	)
	return scanBooking(row)
}

// GetBooking loads one booking by id.
func (s *Store) GetBooking(ctx context.Context, id string) (Booking, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

// GetBookingForUser loads a booking owned by the given user.
func (s *Store) GetBookingForUser(ctx context.Context, id, userID string) (Booking, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2`, id, userID)
	return scanBooking(row)
}

// GetPendingBookingForDestination returns the user's most recent standalone
// PENDING_PAYMENT booking for a destination, if any. Used to resume payment
// after a failed charge instead of committing a duplicate snapshot.
func (s *Store) GetPendingBookingForDestination(ctx context.Context, userID, destinationID string) (Booking, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1 AND destination_id = $2 AND status = $3 AND cart_id IS NULL
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, destinationID, BookingStatusPendingPayment)
	return scanBooking(row)
}

// UpdateBookingStatus transitions a booking to the provided status.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCartBookingStatuses transitions every booking attached to the cart.
func (s *Store) UpdateCartBookingStatuses(ctx context.Context, cartID string, status BookingStatus) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = now() WHERE cart_id = $1`, cartID, status)
	return mapError(err)
}

// ListCartBookings returns the bookings attached to a cart, oldest first.
func (s *Store) ListCartBookings(ctx context.Context, cartID string) ([]Booking, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE cart_id = $1 AND status = $2 ORDER BY created_at`,
		cartID, BookingStatusInCart)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DetachBookingFromCart cancels a cart booking and removes it from the cart.
func (s *Store) DetachBookingFromCart(ctx context.Context, cartID, bookingID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE bookings SET cart_id = NULL, status = $3, updated_at = now()
		WHERE id = $1 AND cart_id = $2`,
		bookingID, cartID, BookingStatusCanceled)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var (
		b          Booking
		activities []byte
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.DestinationID, &b.Status, &b.StartDate, &b.EndDate,
		&b.Origin, &b.RouteID, &b.HotelID, &activities, &b.SkipTransport, &b.SkipHotel, &b.SkipActivities,
		&b.TotalCost, &b.DiscountedCost, &b.Currency, &b.CartID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return Booking{}, mapError(err)
	}
	if len(activities) > 0 {
		if err := json.Unmarshal(activities, &b.Activities); err != nil {
			return Booking{}, err
		}
	}
	return b, nil
}

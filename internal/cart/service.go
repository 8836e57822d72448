package cart

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-wisata/internal/booking"
	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// CartStore is the slice of the store the aggregator needs.
type CartStore interface {
	EnsureActiveCart(ctx context.Context, userID string) (store.Cart, error)
	GetActiveCartByUser(ctx context.Context, userID string) (store.Cart, error)
	ListCartBookings(ctx context.Context, cartID string) ([]store.Booking, error)
	CreateBooking(ctx context.Context, b store.Booking) (store.Booking, error)
	DetachBookingFromCart(ctx context.Context, cartID, bookingID string) error
}

// View is a cart with its bookings and the recomputed grand total. The grand
// total is always re-derived from the server-side rows, never adjusted
// incrementally, so concurrent changes cannot leave a stale sum behind.
type View struct {
	Cart            store.Cart      `json:"cart"`
	Bookings        []store.Booking `json:"bookings"`
	GrandTotal      pricing.Money   `json:"grandTotal"`
	DiscountedTotal pricing.Money   `json:"discountedTotal"`
}

// Service aggregates composed-but-unpaid bookings into one cart and checks
// the whole cart out through the payment dispatcher.
type Service struct {
	Store      CartStore
	Drafts     *booking.Service
	Dispatcher *payment.Dispatcher
	Logger     zerolog.Logger
}

// Get returns the user's active cart with a freshly computed grand total.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.Store.EnsureActiveCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// AddDraft snapshots the user's draft for a destination into the cart and
// resets the originating draft.
func (s *Service) AddDraft(ctx context.Context, userID, destinationID string) (View, error) {
	if s == nil || s.Store == nil || s.Drafts == nil {
		return View{}, errors.New("cart service not configured")
	}
	snapshot, _, err := s.Drafts.SnapshotForCart(ctx, userID, destinationID)
	if err != nil {
		return View{}, err
	}
	cart, err := s.Store.EnsureActiveCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	snapshot.Status = store.BookingStatusInCart
	snapshot.CartID = &cart.ID
	if _, err := s.Store.CreateBooking(ctx, snapshot); err != nil {
		return View{}, err
	}
	if err := s.Drafts.ResetDraft(ctx, userID, destinationID); err != nil {
		s.Logger.Error().Err(err).Str("destination_id", destinationID).Msg("reset draft after add to cart")
	}
	return s.view(ctx, cart)
}

// Remove detaches a booking from the cart and re-reads the whole cart from
// the store. The refetch, not a local subtraction, yields the new total.
func (s *Service) Remove(ctx context.Context, userID, bookingID string) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if err := s.Store.DetachBookingFromCart(ctx, cart.ID, bookingID); err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// Clear detaches every booking from the active cart.
func (s *Service) Clear(ctx context.Context, userID string) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		return View{}, err
	}
	bookings, err := s.Store.ListCartBookings(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	for _, b := range bookings {
		if err := s.Store.DetachBookingFromCart(ctx, cart.ID, b.ID); err != nil {
			return View{}, err
		}
	}
	return s.view(ctx, cart)
}

// Checkout recomputes the grand total and runs the payment dispatcher
// against it. The per-booking totals were computed server-side at commit
// time; checkout only sums them.
func (s *Service) Checkout(ctx context.Context, userID string, method payment.Method, wallet string) (View, payment.Outcome, error) {
	if s == nil || s.Store == nil || s.Dispatcher == nil {
		return View{}, payment.Outcome{}, errors.New("cart service not configured")
	}
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "CartService.Checkout")
	defer span.End()

	result := "error"
	defer func() {
		if obs.CartCheckoutTotal != nil {
			obs.CartCheckoutTotal.WithLabelValues(string(method), result).Inc()
		}
	}()

	cart, err := s.Store.GetActiveCartByUser(ctx, userID)
	if err != nil {
		return View{}, payment.Outcome{}, err
	}
	view, err := s.view(ctx, cart)
	if err != nil {
		return View{}, payment.Outcome{}, err
	}
	if len(view.Bookings) == 0 {
		return view, payment.Outcome{}, common.ValidationError("cart is empty", map[string]string{
			"bookings": "at least one booking is required to check out",
		})
	}
	span.SetAttributes(
		attribute.Int("cart.bookings", len(view.Bookings)),
		attribute.Int64("cart.grand_total", view.GrandTotal),
	)

	outcome, err := s.Dispatcher.Dispatch(ctx, payment.Request{
		RefKind:         store.RefKindCart,
		RefID:           cart.ID,
		UserID:          userID,
		Method:          method,
		Total:           view.GrandTotal,
		DiscountedTotal: view.DiscountedTotal,
		Wallet:          wallet,
	})
	if err != nil {
		// the cart and its bookings survive a failed checkout untouched
		return view, payment.Outcome{}, err
	}
	switch outcome.Status {
	case store.PaymentStatusPending:
		result = "pending"
	default:
		result = "success"
	}
	view, viewErr := s.view(ctx, cart)
	if viewErr != nil {
		return View{}, payment.Outcome{}, viewErr
	}
	return view, outcome, nil
}

func (s *Service) view(ctx context.Context, cart store.Cart) (View, error) {
	bookings, err := s.Store.ListCartBookings(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	var grand pricing.Money
	for _, b := range bookings {
		grand += b.TotalCost
	}
	return View{
		Cart:            cart,
		Bookings:        bookings,
		GrandTotal:      grand,
		DiscountedTotal: pricing.ApplyDiscount(grand, pricing.SavingsDiscountBps),
	}, nil
}

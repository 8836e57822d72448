package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-wisata/internal/booking"
	"github.com/noah-isme/backend-wisata/internal/catalog"
	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// fakeCartStore backs both the aggregator and the dispatcher in tests.
type fakeCartStore struct {
	cart     store.Cart
	bookings map[string]store.Booking
	payments map[string]store.Payment
}

func newFakeCartStore(userID string) *fakeCartStore {
	return &fakeCartStore{
		cart:     store.Cart{ID: uuid.NewString(), UserID: userID, Status: store.CartStatusActive},
		bookings: map[string]store.Booking{},
		payments: map[string]store.Payment{},
	}
}

func (f *fakeCartStore) EnsureActiveCart(_ context.Context, userID string) (store.Cart, error) {
	if f.cart.UserID != userID {
		return store.Cart{}, store.ErrNotFound
	}
	return f.cart, nil
}

func (f *fakeCartStore) GetActiveCartByUser(ctx context.Context, userID string) (store.Cart, error) {
	return f.EnsureActiveCart(ctx, userID)
}

func (f *fakeCartStore) ListCartBookings(_ context.Context, cartID string) ([]store.Booking, error) {
	var out []store.Booking
	for _, b := range f.bookings {
		if b.CartID != nil && *b.CartID == cartID && b.Status == store.BookingStatusInCart {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCartStore) CreateBooking(_ context.Context, b store.Booking) (store.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	f.bookings[b.ID] = b
	return b, nil
}

func (f *fakeCartStore) DetachBookingFromCart(_ context.Context, cartID, bookingID string) error {
	b, ok := f.bookings[bookingID]
	if !ok || b.CartID == nil || *b.CartID != cartID {
		return store.ErrNotFound
	}
	b.CartID = nil
	b.Status = store.BookingStatusCanceled
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeCartStore) CreatePayment(_ context.Context, p store.Payment) (store.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakeCartStore) UpdatePaymentStatus(_ context.Context, id string, status store.PaymentStatus, _, _ string) error {
	p, ok := f.payments[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	f.payments[id] = p
	return nil
}

func (f *fakeCartStore) GetLatestPaymentByRef(_ context.Context, kind store.RefKind, refID string) (store.Payment, error) {
	for _, p := range f.payments {
		if p.RefKind == kind && p.RefID == refID {
			return p, nil
		}
	}
	return store.Payment{}, store.ErrNotFound
}

func (f *fakeCartStore) UpdateBookingStatus(_ context.Context, id string, status store.BookingStatus) error {
	b, ok := f.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = status
	f.bookings[id] = b
	return nil
}

func (f *fakeCartStore) UpdateCartBookingStatuses(_ context.Context, cartID string, status store.BookingStatus) error {
	for id, b := range f.bookings {
		if b.CartID != nil && *b.CartID == cartID {
			b.Status = status
			f.bookings[id] = b
		}
	}
	return nil
}

func (f *fakeCartStore) SetCartStatus(_ context.Context, id string, status store.CartStatus) error {
	if f.cart.ID != id {
		return store.ErrNotFound
	}
	f.cart.Status = status
	return nil
}

type captureCard struct {
	amounts []pricing.Money
}

func (c *captureCard) Charge(_ context.Context, req payment.CardCharge) (payment.CardResult, error) {
	c.amounts = append(c.amounts, req.Amount)
	return payment.CardResult{ProviderRef: "ch_cart", Approved: true}, nil
}

func (f *fakeCartStore) seedCartBooking(total pricing.Money) store.Booking {
	b := store.Booking{
		ID:        uuid.NewString(),
		UserID:    f.cart.UserID,
		Status:    store.BookingStatusInCart,
		CartID:    &f.cart.ID,
		TotalCost: total,
	}
	f.bookings[b.ID] = b
	return b
}

func newCartService(st *fakeCartStore, card payment.CardProvider) *Service {
	return &Service{
		Store: st,
		Dispatcher: &payment.Dispatcher{
			Store:  st,
			Card:   card,
			Logger: zerolog.Nop(),
		},
		Logger: zerolog.Nop(),
	}
}

func TestGrandTotalIsSumOfServerTotals(t *testing.T) {
	st := newFakeCartStore("user-1")
	st.seedCartBooking(390_000)
	st.seedCartBooking(100_000)
	svc := newCartService(st, nil)

	view, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 490_000, view.GrandTotal)
	require.EqualValues(t, 465_500, view.DiscountedTotal)
}

func TestCheckoutChargesGrandTotal(t *testing.T) {
	st := newFakeCartStore("user-1")
	st.seedCartBooking(390_000)
	st.seedCartBooking(100_000)
	card := &captureCard{}
	svc := newCartService(st, card)

	view, outcome, err := svc.Checkout(context.Background(), "user-1", payment.MethodCard, "")
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPaid, outcome.Status)
	require.Equal(t, []pricing.Money{490_000}, card.amounts)
	require.Equal(t, store.CartStatusCheckedOut, st.cart.Status)
	for _, b := range st.bookings {
		require.Equal(t, store.BookingStatusPaid, b.Status)
	}
	require.Empty(t, view.Bookings, "checked-out bookings leave the active view")
}

func TestCheckoutEmptyCartIsRejected(t *testing.T) {
	st := newFakeCartStore("user-1")
	card := &captureCard{}
	svc := newCartService(st, card)

	_, _, err := svc.Checkout(context.Background(), "user-1", payment.MethodCard, "")
	require.Error(t, err)
	require.Equal(t, common.CodeValidation, common.AsAppError(err).Code)
	require.Empty(t, card.amounts, "nothing to charge in an empty cart")
	require.Empty(t, st.payments, "no payment row for an empty cart")
	require.Equal(t, store.CartStatusActive, st.cart.Status)
}

func TestRemoveRefetchesInsteadOfSubtracting(t *testing.T) {
	st := newFakeCartStore("user-1")
	first := st.seedCartBooking(390_000)
	st.seedCartBooking(100_000)
	svc := newCartService(st, nil)

	view, err := svc.Remove(context.Background(), "user-1", first.ID)
	require.NoError(t, err)
	require.Len(t, view.Bookings, 1)
	require.EqualValues(t, 100_000, view.GrandTotal)
	require.Equal(t, store.BookingStatusCanceled, st.bookings[first.ID].Status)
}

func TestRemoveUnknownBookingFails(t *testing.T) {
	st := newFakeCartStore("user-1")
	svc := newCartService(st, nil)

	_, err := svc.Remove(context.Background(), "user-1", uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClearDetachesEverything(t *testing.T) {
	st := newFakeCartStore("user-1")
	st.seedCartBooking(390_000)
	st.seedCartBooking(100_000)
	svc := newCartService(st, nil)

	view, err := svc.Clear(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, view.Bookings)
	require.Zero(t, view.GrandTotal)
}

type staticCatalog struct{}

func (staticCatalog) GetTransportOrigins(context.Context) ([]catalog.Origin, error) {
	return []catalog.Origin{{Code: "JKT"}}, nil
}
func (staticCatalog) GetTransportRoutes(context.Context, string, string) ([]catalog.Route, error) {
	return []catalog.Route{{ID: "route-1", Origin: "JKT", Cost: 50_000}}, nil
}
func (staticCatalog) GetHotels(context.Context, string) ([]catalog.Hotel, error) {
	return []catalog.Hotel{{ID: "hotel-1", PricePerNight: 100_000}}, nil
}
func (staticCatalog) GetActivities(context.Context, string) ([]catalog.Activity, error) {
	return []catalog.Activity{{ID: "act-1", Price: 20_000}}, nil
}

func TestAddDraftSnapshotsAndResetsDraft(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := newFakeCartStore("user-1")
	drafts := &booking.Service{
		Drafts:   &booking.DraftStore{R: rdb, TTL: time.Hour},
		Catalog:  staticCatalog{},
		Currency: "IDR",
		Logger:   zerolog.Nop(),
	}
	svc := newCartService(st, nil)
	svc.Drafts = drafts

	ctx := context.Background()
	_, err := drafts.StartDraft(ctx, "user-1", "dest-1")
	require.NoError(t, err)
	for _, a := range []booking.Action{
		booking.SetDates{Start: time.Now().AddDate(0, 1, 0).Format("2006-01-02"), End: time.Now().AddDate(0, 1, 3).Format("2006-01-02")},
		booking.SetOrigin{Origin: "JKT"},
		booking.SetRoute{RouteID: "route-1"},
		booking.SetHotel{HotelID: "hotel-1"},
		booking.SetAgreed{Agreed: true},
	} {
		_, err = drafts.ApplyAction(ctx, "user-1", "dest-1", a)
		require.NoError(t, err)
	}

	view, err := svc.AddDraft(ctx, "user-1", "dest-1")
	require.NoError(t, err)
	require.Len(t, view.Bookings, 1)
	require.EqualValues(t, 350_000, view.GrandTotal, "3 nights lodging plus transport")

	_, err = drafts.GetDraft(ctx, "user-1", "dest-1")
	require.ErrorIs(t, err, booking.ErrDraftNotFound, "adding to the cart resets the draft")
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-wisata/internal/catalog"
	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/events"
	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// ErrStaleCatalog marks a dependent catalog fetch whose origin or destination
// changed while the fetch was in flight. The result must be discarded;
// last-write-wins on the draft field, not on arrival order.
var ErrStaleCatalog = errors.New("booking: catalog fetch superseded")

// BookingStore is the slice of the store the wizard needs.
type BookingStore interface {
	CreateBooking(ctx context.Context, b store.Booking) (store.Booking, error)
	GetPendingBookingForDestination(ctx context.Context, userID, destinationID string) (store.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status store.BookingStatus) error
}

// Service owns draft lifecycle: it is the single state owner through which
// every draft mutation is serialized.
type Service struct {
	Drafts     *DraftStore
	Catalog    catalog.Client
	Store      BookingStore
	Dispatcher *payment.Dispatcher
	Events     *events.Bus
	Currency   string
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// StartDraft returns the user's draft for a destination, creating an empty
// one positioned at the first step if none exists.
func (s *Service) StartDraft(ctx context.Context, userID, destinationID string) (Draft, error) {
	d, err := s.Drafts.Get(ctx, userID, destinationID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDraftNotFound) {
		return Draft{}, err
	}
	d = NewDraft(userID, destinationID, s.now())
	if err := s.Drafts.Save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// GetDraft loads an existing draft.
func (s *Service) GetDraft(ctx context.Context, userID, destinationID string) (Draft, error) {
	return s.Drafts.Get(ctx, userID, destinationID)
}

// ResetDraft abandons the wizard session.
func (s *Service) ResetDraft(ctx context.Context, userID, destinationID string) error {
	return s.Drafts.Delete(ctx, userID, destinationID)
}

// ApplyAction reduces the draft with one action and persists the result. A
// failed validation keeps the step and surfaces the field errors on the
// returned draft, never as a hard failure.
func (s *Service) ApplyAction(ctx context.Context, userID, destinationID string, action Action) (Draft, error) {
	d, err := s.Drafts.Get(ctx, userID, destinationID)
	if err != nil {
		return Draft{}, err
	}
	next := Apply(d, action)
	next.UpdatedAt = s.now()
	if err := s.Drafts.Save(ctx, next); err != nil {
		return Draft{}, err
	}
	recordStep(d.Step, action, len(next.Errors) == 0)
	return next, nil
}

// LoadRoutes fetches transport routes for the draft's current origin. When
// the origin changed while the fetch was in flight the stale result is
// discarded and ErrStaleCatalog returned so the caller refetches.
func (s *Service) LoadRoutes(ctx context.Context, userID, destinationID string) ([]catalog.Route, error) {
	d, err := s.Drafts.Get(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	if d.Selections.Origin == "" {
		return nil, common.ValidationError("origin must be selected before loading routes", map[string]string{
			"origin": "required",
		})
	}
	gen := d.CatalogGen
	routes, err := s.Catalog.GetTransportRoutes(ctx, d.Selections.Origin, destinationID)
	if err != nil {
		return nil, common.CollaboratorError("transport route lookup failed", err)
	}
	current, err := s.Drafts.Get(ctx, userID, destinationID)
	if err != nil {
		return nil, err
	}
	if current.CatalogGen != gen {
		return nil, ErrStaleCatalog
	}
	return routes, nil
}

// Quote prices the draft from live catalog data. The total is always derived
// from {selections, sessions, skip flags, catalog prices}; it is never stored,
// so the displayed and charged amounts cannot drift apart.
func (s *Service) Quote(ctx context.Context, d Draft) (pricing.Breakdown, error) {
	ctx, span := otel.Tracer("booking.Service").Start(ctx, "BookingService.Quote")
	defer span.End()

	in := pricing.Input{
		Start:          d.StartDate,
		End:            d.EndDate,
		SkipTransport:  d.Skip.Transport,
		SkipHotel:      d.Skip.Hotel,
		SkipActivities: d.Skip.Activities,
	}

	if !d.Skip.Transport && d.Selections.TransportRouteID != "" {
		routes, err := s.Catalog.GetTransportRoutes(ctx, d.Selections.Origin, d.DestinationID)
		if err != nil {
			return pricing.Breakdown{}, common.CollaboratorError("transport route lookup failed", err)
		}
		route, ok := findRoute(routes, d.Selections.TransportRouteID)
		if !ok {
			return pricing.Breakdown{}, common.ValidationError("selected route is no longer offered", map[string]string{
				"transportRouteId": "not available for the chosen origin",
			})
		}
		in.RouteID = route.ID
		in.RouteCost = route.Cost
	}

	if !d.Skip.Hotel && d.Selections.HotelID != "" {
		hotels, err := s.Catalog.GetHotels(ctx, d.DestinationID)
		if err != nil {
			return pricing.Breakdown{}, common.CollaboratorError("hotel lookup failed", err)
		}
		hotel, ok := findHotel(hotels, d.Selections.HotelID)
		if !ok {
			return pricing.Breakdown{}, common.ValidationError("selected hotel is no longer offered", map[string]string{
				"hotelId": "not available",
			})
		}
		in.HotelID = hotel.ID
		in.HotelPerNight = hotel.PricePerNight
	}

	if !d.Skip.Activities && len(d.Selections.ActivityIDs) > 0 {
		activities, err := s.Catalog.GetActivities(ctx, d.DestinationID)
		if err != nil {
			return pricing.Breakdown{}, common.CollaboratorError("activity lookup failed", err)
		}
		for _, id := range d.Selections.ActivityIDs {
			act, ok := findActivity(activities, id)
			if !ok {
				return pricing.Breakdown{}, common.ValidationError("a selected activity is no longer offered", map[string]string{
					"activityIds": fmt.Sprintf("activity %s not available", id),
				})
			}
			in.Activities = append(in.Activities, pricing.ActivityLine{
				ActivityID: act.ID,
				Price:      act.Price,
				Sessions:   d.Sessions(id),
			})
		}
	}

	b := pricing.Quote(in)
	span.SetAttributes(
		attribute.Int64("pricing.total", b.Total),
		attribute.Int("pricing.nights", b.Nights),
	)
	return b, nil
}

// Submit commits the draft as a booking and dispatches payment for it. The
// booking row is created in PENDING_PAYMENT before the charge so a payment
// failure leaves a retryable record; the draft is reset only once settlement
// is no longer the user's problem (paid or awaiting confirmation).
func (s *Service) Submit(ctx context.Context, userID, destinationID string, method payment.Method, wallet string) (store.Booking, payment.Outcome, error) {
	var zero store.Booking
	if s == nil || s.Store == nil || s.Dispatcher == nil {
		return zero, payment.Outcome{}, errors.New("booking service not configured")
	}
	d, err := s.Drafts.Get(ctx, userID, destinationID)
	if err != nil {
		return zero, payment.Outcome{}, err
	}
	if errs := ValidateForSubmission(d); errs != nil {
		return zero, payment.Outcome{}, common.ValidationError("draft is not ready for submission", errs)
	}
	quote, err := s.Quote(ctx, d)
	if err != nil {
		return zero, payment.Outcome{}, err
	}

	booking, err := s.resumeOrCreateBooking(ctx, userID, destinationID, d, quote)
	if err != nil {
		return zero, payment.Outcome{}, err
	}

	outcome, err := s.Dispatcher.Dispatch(ctx, payment.Request{
		RefKind:         store.RefKindBooking,
		RefID:           booking.ID,
		UserID:          userID,
		Method:          method,
		Total:           quote.Total,
		DiscountedTotal: quote.DiscountedTotal,
		Wallet:          wallet,
	})
	if err != nil {
		// the booking stays PENDING_PAYMENT and the draft is kept so the
		// user retries without re-composing the trip
		return booking, payment.Outcome{}, err
	}
	if delErr := s.Drafts.Delete(ctx, userID, destinationID); delErr != nil {
		s.Logger.Error().Err(delErr).Str("booking_id", booking.ID).Msg("reset draft after submission")
	}
	return booking, outcome, nil
}

// resumeOrCreateBooking finds an earlier PENDING_PAYMENT booking for the same
// destination and reuses it when its snapshot still matches the re-quoted
// draft, so a payment retry settles the original row instead of orphaning it.
// A stale snapshot (catalog prices or selections changed since) is canceled
// and replaced with a fresh commit.
func (s *Service) resumeOrCreateBooking(ctx context.Context, userID, destinationID string, d Draft, quote pricing.Breakdown) (store.Booking, error) {
	existing, err := s.Store.GetPendingBookingForDestination(ctx, userID, destinationID)
	switch {
	case err == nil:
		if existing.TotalCost == quote.Total && existing.DiscountedCost == quote.DiscountedTotal {
			return existing, nil
		}
		if err := s.Store.UpdateBookingStatus(ctx, existing.ID, store.BookingStatusCanceled); err != nil {
			return store.Booking{}, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return store.Booking{}, err
	}

	booking := snapshotBooking(d, quote, s.Currency)
	booking.Status = store.BookingStatusPendingPayment
	booking, err = s.Store.CreateBooking(ctx, booking)
	if err != nil {
		return store.Booking{}, err
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicBookingCreated, booking.ID, map[string]any{
			"destinationId": destinationID,
			"total":         quote.Total,
		})
	}
	return booking, nil
}

// SnapshotForCart validates and prices the draft, returning the booking
// snapshot to be attached to a cart. The caller owns persistence.
func (s *Service) SnapshotForCart(ctx context.Context, userID, destinationID string) (store.Booking, pricing.Breakdown, error) {
	d, err := s.Drafts.Get(ctx, userID, destinationID)
	if err != nil {
		return store.Booking{}, pricing.Breakdown{}, err
	}
	if errs := ValidateForSubmission(d); errs != nil {
		return store.Booking{}, pricing.Breakdown{}, common.ValidationError("draft is not ready for the cart", errs)
	}
	quote, err := s.Quote(ctx, d)
	if err != nil {
		return store.Booking{}, pricing.Breakdown{}, err
	}
	return snapshotBooking(d, quote, s.Currency), quote, nil
}

func snapshotBooking(d Draft, quote pricing.Breakdown, currency string) store.Booking {
	activities := make([]store.BookedActivity, 0, len(quote.Items))
	for _, item := range quote.Items {
		if item.Category != pricing.CategoryActivity {
			continue
		}
		activities = append(activities, store.BookedActivity{
			ActivityID: item.RefID,
			Price:      item.UnitPrice,
			Sessions:   item.Qty,
		})
	}
	return store.Booking{
		UserID:         d.UserID,
		DestinationID:  d.DestinationID,
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		Origin:         d.Selections.Origin,
		RouteID:        d.Selections.TransportRouteID,
		HotelID:        d.Selections.HotelID,
		Activities:     activities,
		SkipTransport:  d.Skip.Transport,
		SkipHotel:      d.Skip.Hotel,
		SkipActivities: d.Skip.Activities,
		TotalCost:      quote.Total,
		DiscountedCost: quote.DiscountedTotal,
		Currency:       currency,
	}
}

func findRoute(routes []catalog.Route, id string) (catalog.Route, bool) {
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return catalog.Route{}, false
}

func findHotel(hotels []catalog.Hotel, id string) (catalog.Hotel, bool) {
	for _, h := range hotels {
		if h.ID == id {
			return h, true
		}
	}
	return catalog.Hotel{}, false
}

func findActivity(activities []catalog.Activity, id string) (catalog.Activity, bool) {
	for _, a := range activities {
		if a.ID == id {
			return a, true
		}
	}
	return catalog.Activity{}, false
}

func recordStep(step Step, action Action, ok bool) {
	if obs.WizardStepTotal == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	obs.WizardStepTotal.WithLabelValues(step.String(), actionName(action), result).Inc()
}

func actionName(a Action) string {
	switch a.(type) {
	case SetDates:
		return "set_dates"
	case SetOrigin:
		return "set_origin"
	case SetRoute:
		return "set_route"
	case SetHotel:
		return "set_hotel"
	case SelectActivity:
		return "select_activity"
	case SetSessions:
		return "set_sessions"
	case SetSkip:
		return "set_skip"
	case SetAgreed:
		return "set_agreed"
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	default:
		return "unknown"
	}
}

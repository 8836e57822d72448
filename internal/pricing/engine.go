package pricing

import "time"

// Money represents a monetary value stored in IDR minor units.
type Money = int64

// SavingsDiscountBps is the fixed discount applied when paying from the
// internal savings balance, expressed in basis points.
const SavingsDiscountBps = 500

// Category identifies which part of the trip a line item prices.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryHotel     Category = "hotel"
	CategoryActivity  Category = "activity"
)

// LineItem is a resolved, priced component of a booking draft. It is derived
// from catalog data and never stored.
type LineItem struct {
	Category  Category
	RefID     string
	UnitPrice Money
	Qty       int
	Subtotal  Money
}

// ActivityLine carries the price and session count for one selected activity.
type ActivityLine struct {
	ActivityID string
	Price      Money
	Sessions   int
}

// Input captures everything the engine needs to price a draft. All fields are
// taken from the draft and the resolved catalog entities for its selections.
type Input struct {
	Start          time.Time
	End            time.Time
	RouteID        string
	RouteCost      Money
	HotelID        string
	HotelPerNight  Money
	Activities     []ActivityLine
	SkipTransport  bool
	SkipHotel      bool
	SkipActivities bool
}

// Breakdown aggregates the computed pricing components for one draft.
type Breakdown struct {
	Nights             int
	Items              []LineItem
	TransportSubtotal  Money
	HotelSubtotal      Money
	ActivitiesSubtotal Money
	Total              Money
	DiscountedTotal    Money
}

// Nights returns the number of chargeable nights between start and end.
// A non-positive span contributes zero nights; date ordering is enforced by
// the wizard validator, not here.
func Nights(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	n := int(end.Sub(start).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// Quote resolves line items and composes them into a total honouring the skip
// flags. A skipped category contributes exactly zero even when a stale
// selection is still present on the draft. The discounted total is computed
// unconditionally; only the savings payment method applies it.
func Quote(in Input) Breakdown {
	b := Breakdown{Nights: Nights(in.Start, in.End)}

	if !in.SkipTransport && in.RouteID != "" {
		item := LineItem{
			Category:  CategoryTransport,
			RefID:     in.RouteID,
			UnitPrice: in.RouteCost,
			Qty:       1,
			Subtotal:  in.RouteCost,
		}
		b.Items = append(b.Items, item)
		b.TransportSubtotal = item.Subtotal
	}

	if !in.SkipHotel && in.HotelID != "" {
		subtotal := in.HotelPerNight * Money(b.Nights)
		item := LineItem{
			Category:  CategoryHotel,
			RefID:     in.HotelID,
			UnitPrice: in.HotelPerNight,
			Qty:       b.Nights,
			Subtotal:  subtotal,
		}
		b.Items = append(b.Items, item)
		b.HotelSubtotal = subtotal
	}

	if !in.SkipActivities {
		for _, a := range in.Activities {
			sessions := a.Sessions
			if sessions < 1 {
				sessions = 1
			}
			subtotal := a.Price * Money(sessions)
			b.Items = append(b.Items, LineItem{
				Category:  CategoryActivity,
				RefID:     a.ActivityID,
				UnitPrice: a.Price,
				Qty:       sessions,
				Subtotal:  subtotal,
			})
			b.ActivitiesSubtotal += subtotal
		}
	}

	b.Total = b.TransportSubtotal + b.HotelSubtotal + b.ActivitiesSubtotal
	b.DiscountedTotal = ApplyDiscount(b.Total, SavingsDiscountBps)
	return b
}

// ApplyDiscount subtracts a basis-point discount from the amount using exact
// integer arithmetic.
func ApplyDiscount(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return amount
	}
	if bps >= 10000 {
		return 0
	}
	return amount * Money(10000-bps) / 10000
}

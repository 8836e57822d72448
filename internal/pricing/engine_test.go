package pricing

import (
	"testing"
	"time"
)

func date(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestQuoteFullTrip(t *testing.T) {
	// 3 nights, hotel 100_000/night, transport 50_000, one activity 20_000 x2.
	b := Quote(Input{
		Start:         date("2025-06-01"),
		End:           date("2025-06-04"),
		RouteID:       "route-1",
		RouteCost:     50_000,
		HotelID:       "hotel-1",
		HotelPerNight: 100_000,
		Activities:    []ActivityLine{{ActivityID: "act-1", Price: 20_000, Sessions: 2}},
	})
	if b.Nights != 3 {
		t.Fatalf("expected 3 nights, got %d", b.Nights)
	}
	if b.TransportSubtotal != 50_000 {
		t.Fatalf("expected transport 50000, got %d", b.TransportSubtotal)
	}
	if b.HotelSubtotal != 300_000 {
		t.Fatalf("expected hotel 300000, got %d", b.HotelSubtotal)
	}
	if b.ActivitiesSubtotal != 40_000 {
		t.Fatalf("expected activities 40000, got %d", b.ActivitiesSubtotal)
	}
	if b.Total != 390_000 {
		t.Fatalf("expected total 390000, got %d", b.Total)
	}
	if b.DiscountedTotal != 370_500 {
		t.Fatalf("expected discounted total 370500, got %d", b.DiscountedTotal)
	}
	if got := b.TransportSubtotal + b.HotelSubtotal + b.ActivitiesSubtotal; got != b.Total {
		t.Fatalf("subtotals %d do not add up to total %d", got, b.Total)
	}
}

func TestQuoteSkipFlagsZeroStaleSelections(t *testing.T) {
	in := Input{
		Start:          date("2025-06-01"),
		End:            date("2025-06-04"),
		RouteID:        "route-1",
		RouteCost:      50_000,
		HotelID:        "hotel-1",
		HotelPerNight:  100_000,
		Activities:     []ActivityLine{{ActivityID: "act-1", Price: 20_000, Sessions: 2}},
		SkipTransport:  true,
		SkipHotel:      true,
		SkipActivities: true,
	}
	b := Quote(in)
	if b.Total != 0 {
		t.Fatalf("expected zero total with all categories skipped, got %d", b.Total)
	}
	if b.TransportSubtotal != 0 || b.HotelSubtotal != 0 || b.ActivitiesSubtotal != 0 {
		t.Fatalf("expected all subtotals zero, got %d/%d/%d", b.TransportSubtotal, b.HotelSubtotal, b.ActivitiesSubtotal)
	}
	if len(b.Items) != 0 {
		t.Fatalf("expected no line items, got %d", len(b.Items))
	}

	// Re-enabling the hotel restores its prior contribution unchanged.
	in.SkipHotel = false
	b = Quote(in)
	if b.HotelSubtotal != 300_000 || b.Total != 300_000 {
		t.Fatalf("expected hotel contribution restored to 300000, got subtotal %d total %d", b.HotelSubtotal, b.Total)
	}
}

func TestQuoteSessionsDefaultToOne(t *testing.T) {
	b := Quote(Input{
		Start:      date("2025-06-01"),
		End:        date("2025-06-02"),
		Activities: []ActivityLine{{ActivityID: "act-1", Price: 25_000, Sessions: 0}},
	})
	if b.ActivitiesSubtotal != 25_000 {
		t.Fatalf("expected one default session worth 25000, got %d", b.ActivitiesSubtotal)
	}
}

func TestNights(t *testing.T) {
	if n := Nights(date("2025-06-04"), date("2025-06-01")); n != 0 {
		t.Fatalf("inverted range should yield 0 nights, got %d", n)
	}
	if n := Nights(date("2025-06-01"), date("2025-06-01")); n != 0 {
		t.Fatalf("same-day range should yield 0 nights, got %d", n)
	}
	if n := Nights(time.Time{}, date("2025-06-01")); n != 0 {
		t.Fatalf("zero start should yield 0 nights, got %d", n)
	}
}

func TestApplyDiscount(t *testing.T) {
	if got := ApplyDiscount(390_000, SavingsDiscountBps); got != 370_500 {
		t.Fatalf("expected 370500, got %d", got)
	}
	if got := ApplyDiscount(0, SavingsDiscountBps); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ApplyDiscount(100, 10000); got != 0 {
		t.Fatalf("full discount should be 0, got %d", got)
	}
}

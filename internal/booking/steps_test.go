package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pinToday(t *testing.T, day string) {
	t.Helper()
	fixed, err := time.Parse(dateLayout, day)
	require.NoError(t, err)
	prev := todayFunc
	todayFunc = func() time.Time { return fixed }
	t.Cleanup(func() { todayFunc = prev })
}

func draftAt(step Step) Draft {
	d := NewDraft("user-1", "dest-1", time.Now())
	d.Step = step
	return d
}

func TestAdvanceWithoutDatesStaysOnStepOne(t *testing.T) {
	d := draftAt(StepDatesOrigin)
	d.Selections.Origin = "JKT"

	got := Apply(d, Advance{})
	require.Equal(t, StepDatesOrigin, got.Step)
	require.Contains(t, got.Errors, "startDate")
	require.Contains(t, got.Errors, "endDate")
}

func TestAdvanceWithDatesAndOriginMovesForward(t *testing.T) {
	pinToday(t, "2025-05-01")
	d := draftAt(StepDatesOrigin)
	d.Selections.Origin = "JKT"
	d = Apply(d, SetDates{Start: "2025-06-01", End: "2025-06-04"})
	require.Empty(t, d.Errors)

	d = Apply(d, Advance{})
	require.Equal(t, StepTransport, d.Step)
	require.Empty(t, d.Errors)
}

func TestSetDatesRejectsPastStart(t *testing.T) {
	pinToday(t, "2025-06-10")
	d := draftAt(StepDatesOrigin)

	got := Apply(d, SetDates{Start: "2025-06-01", End: "2025-06-04"})
	require.Contains(t, got.Errors, "startDate")
	require.True(t, got.StartDate.IsZero(), "rejected dates are not applied")
}

func TestSetDatesRejectsInvertedRange(t *testing.T) {
	pinToday(t, "2025-05-01")
	d := draftAt(StepDatesOrigin)

	got := Apply(d, SetDates{Start: "2025-06-04", End: "2025-06-01"})
	require.Contains(t, got.Errors, "endDate")
}

func TestOriginRequiredUnlessTransportSkipped(t *testing.T) {
	pinToday(t, "2025-05-01")
	d := draftAt(StepDatesOrigin)
	d = Apply(d, SetDates{Start: "2025-06-01", End: "2025-06-04"})

	got := Apply(d, Advance{})
	require.Equal(t, StepDatesOrigin, got.Step)
	require.Contains(t, got.Errors, "origin")

	d = Apply(d, SetSkip{Category: "transport", Skip: true})
	got = Apply(d, Advance{})
	require.Equal(t, StepTransport, got.Step)
}

func TestTransportStepRequiresRouteUnlessSkipped(t *testing.T) {
	d := draftAt(StepTransport)

	got := Apply(d, Advance{})
	require.Equal(t, StepTransport, got.Step)
	require.Contains(t, got.Errors, "transportRouteId")

	got = Apply(Apply(d, SetSkip{Category: "transport", Skip: true}), Advance{})
	require.Equal(t, StepLodging, got.Step)

	got = Apply(Apply(d, SetRoute{RouteID: "route-1"}), Advance{})
	require.Equal(t, StepLodging, got.Step)
}

func TestLodgingStepRequiresHotelUnlessSkipped(t *testing.T) {
	d := draftAt(StepLodging)

	got := Apply(d, Advance{})
	require.Equal(t, StepLodging, got.Step)
	require.Contains(t, got.Errors, "hotelId")

	got = Apply(Apply(d, SetSkip{Category: "hotel", Skip: true}), Advance{})
	require.Equal(t, StepActivities, got.Step)
}

func TestActivitiesStepRejectsZeroSessions(t *testing.T) {
	d := draftAt(StepActivities)
	d = Apply(d, SelectActivity{ActivityID: "act-1", Selected: true})
	d = Apply(d, SetSessions{ActivityID: "act-1", Sessions: 0})

	got := Apply(d, Advance{})
	require.Equal(t, StepActivities, got.Step)
	require.Contains(t, got.Errors, "activitySessions.act-1")
}

func TestReviewRequiresAgreedTerms(t *testing.T) {
	d := draftAt(StepReview)

	got := Apply(d, Advance{})
	require.Equal(t, StepReview, got.Step)
	require.Contains(t, got.Errors, "agreedToTerms")

	got = Apply(Apply(d, SetAgreed{Agreed: true}), Advance{})
	require.Equal(t, StepReview, got.Step, "advancing from review never moves past the last step")
	require.Empty(t, got.Errors)
}

func TestRetreatIsAlwaysAllowed(t *testing.T) {
	d := draftAt(StepLodging)

	got := Apply(d, Retreat{})
	require.Equal(t, StepTransport, got.Step)

	got = Apply(draftAt(FirstStep), Retreat{})
	require.Equal(t, FirstStep, got.Step)
}

func TestSkipTogglePreservesSelection(t *testing.T) {
	d := draftAt(StepLodging)
	d = Apply(d, SetHotel{HotelID: "hotel-1"})

	d = Apply(d, SetSkip{Category: "hotel", Skip: true})
	require.True(t, d.Skip.Hotel)
	require.Equal(t, "hotel-1", d.Selections.HotelID, "skipping never clears the selection")

	d = Apply(d, SetSkip{Category: "hotel", Skip: false})
	require.False(t, d.Skip.Hotel)
	require.Equal(t, "hotel-1", d.Selections.HotelID)
}

func TestSkipFlagsAreIndependent(t *testing.T) {
	d := draftAt(StepDatesOrigin)
	d = Apply(d, SetSkip{Category: "transport", Skip: true})
	d = Apply(d, SetSkip{Category: "activities", Skip: true})

	require.True(t, d.Skip.Transport)
	require.False(t, d.Skip.Hotel)
	require.True(t, d.Skip.Activities)
}

func TestOriginChangeClearsRouteAndBumpsGeneration(t *testing.T) {
	d := draftAt(StepTransport)
	d = Apply(d, SetOrigin{Origin: "JKT"})
	d = Apply(d, SetRoute{RouteID: "route-1"})
	gen := d.CatalogGen

	d = Apply(d, SetOrigin{Origin: "SBY"})
	require.Empty(t, d.Selections.TransportRouteID, "routes are origin-dependent")
	require.Equal(t, gen+1, d.CatalogGen)

	// re-selecting the same origin is a no-op
	d = Apply(d, SetOrigin{Origin: "SBY"})
	require.Equal(t, gen+1, d.CatalogGen)
}

func TestDeselectActivityDropsSessions(t *testing.T) {
	d := draftAt(StepActivities)
	d = Apply(d, SelectActivity{ActivityID: "act-1", Selected: true})
	d = Apply(d, SetSessions{ActivityID: "act-1", Sessions: 3})

	d = Apply(d, SelectActivity{ActivityID: "act-1", Selected: false})
	require.False(t, d.Selections.HasActivity("act-1"))
	require.NotContains(t, d.ActivitySessions, "act-1")
}

func TestValidateForSubmissionCollectsAllSteps(t *testing.T) {
	d := NewDraft("user-1", "dest-1", time.Now())

	errs := ValidateForSubmission(d)
	require.Contains(t, errs, "startDate")
	require.Contains(t, errs, "transportRouteId")
	require.Contains(t, errs, "hotelId")
	require.Contains(t, errs, "agreedToTerms")
}

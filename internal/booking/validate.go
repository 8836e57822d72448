package booking

import (
	"time"
)

const dateLayout = "2006-01-02"

// ValidateStep checks the invariants of one step against the draft. It
// returns an empty map when the step is satisfied; otherwise the map carries
// one message per offending field. Validation never fails hard: the caller
// reports the map and stays on the current step.
func ValidateStep(d Draft, step Step) map[string]string {
	errs := map[string]string{}
	switch step {
	case StepDatesOrigin:
		validateDatesOrigin(d, errs)
	case StepTransport:
		if !d.Skip.Transport && d.Selections.TransportRouteID == "" {
			errs["transportRouteId"] = "select a transport route or skip transport"
		}
	case StepLodging:
		if !d.Skip.Hotel && d.Selections.HotelID == "" {
			errs["hotelId"] = "select a hotel or skip lodging"
		}
	case StepActivities:
		for _, id := range d.Selections.ActivityIDs {
			if n, ok := d.ActivitySessions[id]; ok && n < 1 {
				errs["activitySessions."+id] = "session count must be at least 1"
			}
		}
	case StepReview:
		if !d.AgreedToTerms {
			errs["agreedToTerms"] = "terms must be accepted before submission"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateForSubmission runs every step's invariants, the gate used before a
// booking is committed or added to the cart.
func ValidateForSubmission(d Draft) map[string]string {
	errs := map[string]string{}
	for step := FirstStep; step <= LastStep; step++ {
		for field, msg := range ValidateStep(d, step) {
			errs[field] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateDatesOrigin(d Draft, errs map[string]string) {
	if d.StartDate.IsZero() {
		errs["startDate"] = "start date is required"
	}
	if d.EndDate.IsZero() {
		errs["endDate"] = "end date is required"
	}
	if !d.StartDate.IsZero() && !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate) {
		errs["endDate"] = "end date must not be before start date"
	}
	if !d.Skip.Transport && d.Selections.Origin == "" {
		errs["origin"] = "origin is required unless transport is skipped"
	}
}

func parseDateRange(start, end string) (time.Time, time.Time, map[string]string) {
	errs := map[string]string{}
	var s, e time.Time
	var err error
	if start != "" {
		s, err = time.Parse(dateLayout, start)
		if err != nil {
			errs["startDate"] = "invalid date, expected YYYY-MM-DD"
		}
	}
	if end != "" {
		e, err = time.Parse(dateLayout, end)
		if err != nil {
			errs["endDate"] = "invalid date, expected YYYY-MM-DD"
		}
	}
	if len(errs) > 0 {
		return time.Time{}, time.Time{}, errs
	}
	if !s.IsZero() && s.Before(today()) {
		errs["startDate"] = "start date must not be in the past"
		return time.Time{}, time.Time{}, errs
	}
	if !s.IsZero() && !e.IsZero() && e.Before(s) {
		errs["endDate"] = "end date must not be before start date"
		return time.Time{}, time.Time{}, errs
	}
	return s, e, nil
}

// todayFunc is swapped in tests to pin the clock.
var todayFunc = func() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func today() time.Time {
	return todayFunc()
}

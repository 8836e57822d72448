package booking

// Action is a single user intent applied to a draft. The reducer is pure:
// Apply never touches external state, which keeps every wizard rule testable
// without an HTTP or storage harness.
type Action interface {
	isAction()
}

// SetDates replaces the trip date range.
type SetDates struct {
	Start string // 2006-01-02
	End   string
}

// SetOrigin selects the departure point. Changing it invalidates any
// previously fetched route list and clears the route selection, since routes
// are origin-dependent.
type SetOrigin struct {
	Origin string
}

// SetRoute selects a transport route for the current origin.
type SetRoute struct {
	RouteID string
}

// SetHotel selects lodging.
type SetHotel struct {
	HotelID string
}

// SelectActivity adds or removes an activity from the selection.
type SelectActivity struct {
	ActivityID string
	Selected   bool
}

// SetSessions sets the session count for a selected activity.
type SetSessions struct {
	ActivityID string
	Sessions   int
}

// SetSkip toggles one category's skip flag.
type SetSkip struct {
	Category string // transport | hotel | activities
	Skip     bool
}

// SetAgreed records acceptance of the booking terms.
type SetAgreed struct {
	Agreed bool
}

// Advance validates the current step and moves forward when it passes.
type Advance struct{}

// Retreat moves one step back without validation.
type Retreat struct{}

func (SetDates) isAction()       {}
func (SetOrigin) isAction()      {}
func (SetRoute) isAction()       {}
func (SetHotel) isAction()       {}
func (SelectActivity) isAction() {}
func (SetSessions) isAction()    {}
func (SetSkip) isAction()        {}
func (SetAgreed) isAction()      {}
func (Advance) isAction()        {}
func (Retreat) isAction()        {}

// Apply reduces the draft with one action and returns the new draft. The
// error map on the returned draft is cleared and recomputed on every
// validation pass; a failed Advance leaves the step unchanged and reports the
// failing fields there.
func Apply(d Draft, a Action) Draft {
	d.Errors = nil

	switch act := a.(type) {
	case SetDates:
		start, end, errs := parseDateRange(act.Start, act.End)
		if len(errs) > 0 {
			d.Errors = errs
			return d
		}
		d.StartDate = start
		d.EndDate = end
	case SetOrigin:
		if act.Origin != d.Selections.Origin {
			d.Selections.Origin = act.Origin
			d.Selections.TransportRouteID = ""
			d.CatalogGen++
		}
	case SetRoute:
		d.Selections.TransportRouteID = act.RouteID
	case SetHotel:
		d.Selections.HotelID = act.HotelID
	case SelectActivity:
		if act.Selected {
			if !d.Selections.HasActivity(act.ActivityID) {
				d.Selections.ActivityIDs = append(d.Selections.ActivityIDs, act.ActivityID)
			}
		} else {
			kept := d.Selections.ActivityIDs[:0]
			for _, id := range d.Selections.ActivityIDs {
				if id != act.ActivityID {
					kept = append(kept, id)
				}
			}
			d.Selections.ActivityIDs = kept
			delete(d.ActivitySessions, act.ActivityID)
		}
	case SetSessions:
		if d.ActivitySessions == nil {
			d.ActivitySessions = map[string]int{}
		}
		d.ActivitySessions[act.ActivityID] = act.Sessions
	case SetSkip:
		switch act.Category {
		case "transport":
			d.Skip.Transport = act.Skip
		case "hotel":
			d.Skip.Hotel = act.Skip
		case "activities":
			d.Skip.Activities = act.Skip
		default:
			d.Errors = map[string]string{"category": "unknown skip category"}
			return d
		}
	case SetAgreed:
		d.AgreedToTerms = act.Agreed
	case Advance:
		errs := ValidateStep(d, d.Step)
		if len(errs) > 0 {
			d.Errors = errs
			return d
		}
		if d.Step < LastStep {
			d.Step++
		}
	case Retreat:
		if d.Step > FirstStep {
			d.Step--
		}
	}
	return d
}

package booking

import (
	"time"
)

// Step identifies a wizard position. Steps are strictly ordered; Advance moves
// forward only through validated transitions, Retreat is always permitted.
type Step int

const (
	StepDatesOrigin Step = iota + 1
	StepTransport
	StepLodging
	StepActivities
	StepReview
)

// FirstStep and LastStep bound the wizard.
const (
	FirstStep = StepDatesOrigin
	LastStep  = StepReview
)

func (s Step) String() string {
	switch s {
	case StepDatesOrigin:
		return "dates_origin"
	case StepTransport:
		return "transport"
	case StepLodging:
		return "lodging"
	case StepActivities:
		return "activities"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// Selections holds the user's catalog choices. Fields stay populated even when
// their category is skipped so re-enabling restores the prior choice.
type Selections struct {
	Origin           string   `json:"origin"`
	TransportRouteID string   `json:"transportRouteId"`
	HotelID          string   `json:"hotelId"`
	ActivityIDs      []string `json:"activityIds"`
}

// HasActivity reports whether the activity is currently selected.
func (s Selections) HasActivity(id string) bool {
	for _, a := range s.ActivityIDs {
		if a == id {
			return true
		}
	}
	return false
}

// SkipOptions are three independent toggles excluding a category from pricing
// and submission. Toggling one never affects the others.
type SkipOptions struct {
	Transport  bool `json:"skipTransport"`
	Hotel      bool `json:"skipHotel"`
	Activities bool `json:"skipActivities"`
}

// Draft is one in-progress booking composition for a destination. It is owned
// by a single user and mutated only through Apply.
type Draft struct {
	UserID        string         `json:"userId"`
	DestinationID string         `json:"destinationId"`
	Step          Step           `json:"step"`
	StartDate     time.Time      `json:"startDate"`
	EndDate       time.Time      `json:"endDate"`
	Selections    Selections     `json:"selections"`
	// ActivitySessions maps a selected activity to its session count.
	// Missing entries count as one session.
	ActivitySessions map[string]int    `json:"activitySessions"`
	Skip             SkipOptions       `json:"skipOptions"`
	AgreedToTerms    bool              `json:"agreedToTerms"`
	Errors           map[string]string `json:"errors,omitempty"`
	// CatalogGen increments whenever origin or destination changes so that
	// in-flight dependent catalog fetches can detect they are stale.
	CatalogGen int       `json:"catalogGen"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewDraft creates an empty draft positioned at the first step.
func NewDraft(userID, destinationID string, now time.Time) Draft {
	return Draft{
		UserID:           userID,
		DestinationID:    destinationID,
		Step:             FirstStep,
		ActivitySessions: map[string]int{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Sessions returns the session count for an activity, defaulting to one.
func (d Draft) Sessions(activityID string) int {
	if n, ok := d.ActivitySessions[activityID]; ok && n >= 1 {
		return n
	}
	return 1
}

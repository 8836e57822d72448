package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// Handler exposes the wizard over HTTP. Every route requires an
// authenticated user; the draft is addressed by user and destination.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// actionReq is the tagged variant carrying one wizard action. Type selects
// the variant; the remaining fields are read per type and validated at this
// boundary rather than threaded through as loose maps.
type actionReq struct {
	Type       string `json:"type" validate:"required,oneof=setDates setOrigin setRoute setHotel selectActivity setSessions setSkip setAgreed advance retreat"`
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
	Origin     string `json:"origin,omitempty"`
	RouteID    string `json:"routeId,omitempty"`
	HotelID    string `json:"hotelId,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
	Selected   *bool  `json:"selected,omitempty"`
	Sessions   int    `json:"sessions,omitempty"`
	Category   string `json:"category,omitempty" validate:"omitempty,oneof=transport hotel activities"`
	Skip       *bool  `json:"skip,omitempty"`
	Agreed     *bool  `json:"agreed,omitempty"`
}

type submitReq struct {
	Method        string `json:"method" validate:"required,oneof=card savings vault"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type draftResp struct {
	Draft Draft `json:"draft"`
}

func (h *Handler) ids(r *http.Request) (userID, destinationID string, ok bool) {
	userID, ok = common.UserID(r.Context())
	destinationID = strings.TrimSpace(chi.URLParam(r, "destinationId"))
	return userID, destinationID, ok && destinationID != ""
}

// Start creates or resumes the draft for a destination.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	d, err := h.Svc.StartDraft(r.Context(), userID, destinationID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, draftResp{Draft: d})
}

// Get returns the current draft.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	d, err := h.Svc.GetDraft(r.Context(), userID, destinationID)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no draft in progress", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, draftResp{Draft: d})
}

// Reset abandons the wizard session.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	if err := h.Svc.ResetDraft(r.Context(), userID, destinationID); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action applies one wizard action to the draft. Validation failures are
// part of the draft response, not HTTP errors: the wizard stays on its step
// and the errors map names the offending fields.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var req actionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	action, err := req.toAction()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	d, err := h.Svc.ApplyAction(r.Context(), userID, destinationID, action)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no draft in progress", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, draftResp{Draft: d})
}

// Quote prices the current draft.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	d, err := h.Svc.GetDraft(r.Context(), userID, destinationID)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no draft in progress", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), d)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quote)
}

// Routes lists transport routes for the draft's origin. A stale fetch asks
// the caller to retry against the updated draft.
func (h *Handler) Routes(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	routes, err := h.Svc.LoadRoutes(r.Context(), userID, destinationID)
	if err != nil {
		if errors.Is(err, ErrStaleCatalog) {
			common.JSONError(w, http.StatusConflict, "STALE_CATALOG", "origin changed during fetch, retry", nil)
			return
		}
		if errors.Is(err, ErrDraftNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no draft in progress", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, routes)
}

// Submit commits the draft and dispatches payment. A pending settlement
// answers 202; the record is committed either way.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, destinationID, ok := h.ids(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	booking, outcome, err := h.Svc.Submit(r.Context(), userID, destinationID, payment.Method(req.Method), req.WalletAddress)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no draft in progress", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	status := http.StatusCreated
	if outcome.Status == store.PaymentStatusPending {
		status = http.StatusAccepted
	}
	common.Data(w, status, map[string]any{
		"bookingId": booking.ID,
		"status":    outcome.Status,
		"paymentId": outcome.Payment.ID,
		"txHash":    outcome.Payment.TxHash,
	})
}

func (r actionReq) toAction() (Action, error) {
	switch r.Type {
	case "setDates":
		return SetDates{Start: r.StartDate, End: r.EndDate}, nil
	case "setOrigin":
		return SetOrigin{Origin: r.Origin}, nil
	case "setRoute":
		return SetRoute{RouteID: r.RouteID}, nil
	case "setHotel":
		return SetHotel{HotelID: r.HotelID}, nil
	case "selectActivity":
		selected := true
		if r.Selected != nil {
			selected = *r.Selected
		}
		return SelectActivity{ActivityID: r.ActivityID, Selected: selected}, nil
	case "setSessions":
		return SetSessions{ActivityID: r.ActivityID, Sessions: r.Sessions}, nil
	case "setSkip":
		if r.Skip == nil {
			return nil, errors.New("skip is required for setSkip")
		}
		return SetSkip{Category: r.Category, Skip: *r.Skip}, nil
	case "setAgreed":
		if r.Agreed == nil {
			return nil, errors.New("agreed is required for setAgreed")
		}
		return SetAgreed{Agreed: *r.Agreed}, nil
	case "advance":
		return Advance{}, nil
	case "retreat":
		return Retreat{}, nil
	default:
		return nil, errors.New("unknown action type")
	}
}

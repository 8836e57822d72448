package cart

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

// Handler exposes the cart over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addReq struct {
	DestinationID string `json:"destinationId" validate:"required"`
}

type checkoutReq struct {
	Method        string `json:"method" validate:"required,oneof=card savings vault"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

func (h *Handler) user(r *http.Request, w http.ResponseWriter) (string, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return "", false
	}
	return userID, true
}

// Get returns the active cart with its recomputed grand total.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(r, w)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), userID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Add snapshots the current draft for a destination into the cart.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(r, w)
	if !ok {
		return
	}
	var req addReq
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
	view, err := h.Svc.AddDraft(r.Context(), userID, req.DestinationID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Remove detaches one booking and returns the refetched cart.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(r, w)
	if !ok {
		return
	}
	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingId"))
	view, err := h.Svc.Remove(r.Context(), userID, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "booking not in cart", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Clear empties the active cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(r, w)
	if !ok {
		return
	}
	view, err := h.Svc.Clear(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no active cart", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Checkout settles the whole cart in one payment.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(r, w)
	if !ok {
		return
	}
	var req checkoutReq
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
	view, outcome, err := h.Svc.Checkout(r.Context(), userID, payment.Method(req.Method), req.WalletAddress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no active cart", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	status := http.StatusOK
	if outcome.Status == store.PaymentStatusPending {
		status = http.StatusAccepted
	}
	common.Data(w, status, map[string]any{
		"cart":      view,
		"status":    outcome.Status,
		"paymentId": outcome.Payment.ID,
		"txHash":    outcome.Payment.TxHash,
	})
}

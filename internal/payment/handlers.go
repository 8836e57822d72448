package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/store"
)

// StatusStore is the read slice the status endpoints need.
type StatusStore interface {
	GetBookingForUser(ctx context.Context, id, userID string) (store.Booking, error)
	GetCart(ctx context.Context, id string) (store.Cart, error)
	GetLatestPaymentByRef(ctx context.Context, kind store.RefKind, refID string) (store.Payment, error)
}

// Handler exposes settlement status polling for bookings and carts. When a
// Refresher is wired, polling a pending vault settlement also re-checks the
// chain on demand instead of waiting for the next scheduled reconciliation.
type Handler struct {
	Store     StatusStore
	Refresher *Reconciler
}

type statusResp struct {
	Status    store.PaymentStatus `json:"status"`
	Method    string              `json:"method,omitempty"`
	Amount    int64               `json:"amount,omitempty"`
	TxHash    string              `json:"txHash,omitempty"`
	UpdatedAt *time.Time          `json:"updatedAt,omitempty"`
}

// BookingStatus reports the latest settlement status for one booking.
func (h *Handler) BookingStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingId"))
	booking, err := h.Store.GetBookingForUser(r.Context(), bookingID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "booking not found", nil)
			return
		}
		common.RenderError(w, err)
		return
	}
	h.renderStatus(w, r, store.RefKindBooking, booking.ID, booking.Status == store.BookingStatusPaid)
}

// CartStatus reports the latest settlement status for the user's cart.
func (h *Handler) CartStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	cartID := strings.TrimSpace(chi.URLParam(r, "cartId"))
	cart, err := h.Store.GetCart(r.Context(), cartID)
	if err != nil || cart.UserID != userID {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "cart not found", nil)
		return
	}
	h.renderStatus(w, r, store.RefKindCart, cart.ID, cart.Status == store.CartStatusCheckedOut)
}

// renderStatus consolidates payment rows with the owning record: when no
// payment row exists yet the record's own state decides.
func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, kind store.RefKind, refID string, settled bool) {
	p, err := h.Store.GetLatestPaymentByRef(r.Context(), kind, refID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			status := store.PaymentStatusPending
			if settled {
				status = store.PaymentStatusPaid
			}
			common.Data(w, http.StatusOK, statusResp{Status: status})
			return
		}
		common.RenderError(w, err)
		return
	}
	if h.Refresher != nil && p.Status == store.PaymentStatusPending && p.Method == string(MethodVault) {
		if refreshed, changed := h.Refresher.RefreshPending(r.Context(), p); changed {
			p = refreshed
		}
	}
	updated := p.UpdatedAt
	common.Data(w, http.StatusOK, statusResp{
		Status:    p.Status,
		Method:    p.Method,
		Amount:    p.Amount,
		TxHash:    p.TxHash,
		UpdatedAt: &updated,
	})
}

package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-wisata/internal/common"
)

// Handler exposes public catalog lookups. Transport routes are not listed
// here: they depend on the traveller's chosen origin and are served through
// the draft endpoints instead.
type Handler struct {
	Client Client
}

// Origins lists available departure points.
func (h *Handler) Origins(w http.ResponseWriter, r *http.Request) {
	origins, err := h.Client.GetTransportOrigins(r.Context())
	if err != nil {
		common.RenderError(w, common.CollaboratorError("catalog unavailable", err))
		return
	}
	if origins == nil {
		origins = []Origin{}
	}
	common.Data(w, http.StatusOK, origins)
}

// Hotels lists lodging options for a destination.
func (h *Handler) Hotels(w http.ResponseWriter, r *http.Request) {
	hotels, err := h.Client.GetHotels(r.Context(), chi.URLParam(r, "destinationId"))
	if err != nil {
		common.RenderError(w, common.CollaboratorError("catalog unavailable", err))
		return
	}
	if hotels == nil {
		hotels = []Hotel{}
	}
	common.Data(w, http.StatusOK, hotels)
}

// Activities lists excursions for a destination.
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.Client.GetActivities(r.Context(), chi.URLParam(r, "destinationId"))
	if err != nil {
		common.RenderError(w, common.CollaboratorError("catalog unavailable", err))
		return
	}
	if activities == nil {
		activities = []Activity{}
	}
	common.Data(w, http.StatusOK, activities)
}

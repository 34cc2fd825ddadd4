package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/plan"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	usecase plan.UseCase
	logger  logger.ZapLogger
}

func NewHandler(usecase plan.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{usecase: usecase, logger: log}
}

func (h *Handler) Map(r chi.Router) {
	r.Get("/usage", h.GetUsage)
	r.Get("/features/{feature}", h.CheckFeature)
}

// MapInternal holds the routes only the scheduler calls. Mounted behind the
// internal-token middleware, never on the public route group.
func (h *Handler) MapInternal(r chi.Router) {
	r.Post("/reset", h.ResetCounters)
}

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	report, err := h.usecase.GetUsage(r.Context(), restaurantID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, report)
}

func (h *Handler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	if err := h.usecase.CheckFeature(r.Context(), restaurantID, chi.URLParam(r, "feature")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]bool{"available": true})
}

type resetRequest struct {
	Period string `json:"period"`
}

// ResetCounters is invoked by the scheduler at day and month boundaries.
func (h *Handler) ResetCounters(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	affected, err := h.usecase.ResetCounters(r.Context(), req.Period)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]int64{"reset": affected})
}

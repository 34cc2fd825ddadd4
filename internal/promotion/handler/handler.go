package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/promotion"
	"github.com/fekuna/omnipos-order-service/internal/promotion/dto"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	usecase promotion.UseCase
	logger  logger.ZapLogger
}

func NewHandler(usecase promotion.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{usecase: usecase, logger: log}
}

func (h *Handler) Map(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Deactivate)
	r.Get("/evaluate/{productID}", h.Evaluate)
}

type promotionRequest struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	StoreIDs  []string  `json:"store_ids"`
}

type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req promotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	created, err := h.usecase.CreatePromotion(r.Context(), &dto.CreatePromotionInput{
		RestaurantID: restaurantID,
		ProductID:    req.ProductID,
		Name:         req.Name,
		Kind:         req.Kind,
		Value:        req.Value,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		StoreIDs:     req.StoreIDs,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	filters := &dto.PromotionFilters{
		RestaurantID: restaurantID,
		ProductID:    r.URL.Query().Get("product_id"),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		filters.IsActive = &active
	}

	items, total, err := h.usecase.ListPromotions(r.Context(), filters)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, listResponse{Items: items, Total: total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	promo, err := h.usecase.GetPromotion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, promo)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req promotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	updated, err := h.usecase.UpdatePromotion(r.Context(), &dto.UpdatePromotionInput{
		ID:           chi.URLParam(r, "id"),
		RestaurantID: restaurantID,
		Name:         req.Name,
		Kind:         req.Kind,
		Value:        req.Value,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		StoreIDs:     req.StoreIDs,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, updated)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	if err := h.usecase.DeactivatePromotion(r.Context(), chi.URLParam(r, "id"), restaurantID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, nil)
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	result, err := h.usecase.EvaluateProduct(r.Context(), restaurantID, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

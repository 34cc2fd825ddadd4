package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/pkg/httpx"
	"github.com/fekuna/omnipos-order-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup"
	"github.com/fekuna/omnipos-order-service/internal/tablegroup/dto"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	usecase tablegroup.UseCase
	logger  logger.ZapLogger
}

func NewHandler(usecase tablegroup.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{usecase: usecase, logger: log}
}

func (h *Handler) Map(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/merge", h.Merge)
	r.Post("/{id}/merge/{sourceID}", h.MergeGroups)
	r.Post("/{id}/split", h.Split)
	r.Post("/{id}/items", h.AddItems)
	r.Delete("/{id}/items/{itemID}", h.RemoveItem)
	r.Post("/{id}/close", h.Close)
}

type openRequest struct {
	StoreID  *string  `json:"store_id,omitempty"`
	ServerID string   `json:"server_id"`
	TableIDs []string `json:"table_ids"`
}

type tablesRequest struct {
	TableIDs []string `json:"table_ids"`
}

type addItemsRequest struct {
	Items []itemRequest `json:"items"`
}

type itemRequest struct {
	ProductID string   `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Notes     string   `json:"notes"`
	Modifiers []string `json:"modifiers"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.ServerID == "" {
		req.ServerID = auth.GetUserID(r.Context())
	}

	group, err := h.usecase.Open(r.Context(), &dto.OpenGroupInput{
		RestaurantID: restaurantID,
		StoreID:      req.StoreID,
		ServerID:     req.ServerID,
		TableIDs:     req.TableIDs,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, group)
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	groups, err := h.usecase.ListActive(r.Context(), restaurantID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, groups)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	group, err := h.usecase.Get(r.Context(), restaurantID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req tablesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	group, err := h.usecase.Merge(r.Context(), restaurantID, chi.URLParam(r, "id"), req.TableIDs)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req tablesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	group, err := h.usecase.Split(r.Context(), restaurantID, chi.URLParam(r, "id"), req.TableIDs)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) MergeGroups(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	group, err := h.usecase.MergeGroups(r.Context(), restaurantID, chi.URLParam(r, "id"), chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	var req addItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	input := &dto.AddItemsInput{
		RestaurantID: restaurantID,
		GroupID:      chi.URLParam(r, "id"),
		Items:        make([]dto.ItemInput, len(req.Items)),
	}
	for i, item := range req.Items {
		input.Items[i] = dto.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
			Modifiers: item.Modifiers,
		}
	}

	group, err := h.usecase.AddItems(r.Context(), input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	group, err := h.usecase.RemoveItem(r.Context(), restaurantID, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, group)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	restaurantID := auth.GetRestaurantID(r.Context())
	if restaurantID == "" {
		httpx.WriteError(w, apperr.NewValidation("restaurant id is required"))
		return
	}

	result, err := h.usecase.Close(r.Context(), restaurantID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, result)
}

package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
)

type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type LimitDetails struct {
	Resource string `json:"resource"`
	Limit    int    `json:"limit"`
	Current  int    `json:"current_usage"`
	Plan     string `json:"plan"`
	Upgrade  bool   `json:"upgrade_required"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// WriteError maps the error taxonomy onto HTTP statuses. Limiter codes pass
// through unchanged so the frontend can render plan-upgrade prompts.
func WriteError(w http.ResponseWriter, err error) {
	if limitErr, ok := apperr.AsLimitExceeded(err); ok {
		WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   string(limitErr.Code),
			Message: limitErr.Error(),
			Data: LimitDetails{
				Resource: limitErr.Resource,
				Limit:    limitErr.Limit,
				Current:  limitErr.Current,
				Plan:     limitErr.Plan,
				Upgrade:  true,
			},
		})
		return
	}

	switch {
	case apperr.IsValidation(err):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: apperr.KindValidation, Message: err.Error()})
	case apperr.IsNotFound(err):
		WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: apperr.KindNotFound, Message: err.Error()})
	case apperr.IsConflict(err):
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: apperr.KindConflict, Message: err.Error()})
	case apperr.IsInvalidState(err):
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: apperr.KindInvalidState, Message: err.Error()})
	default:
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL", Message: "unexpected server error"})
	}
}

func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.NewValidation("invalid JSON body: %v", err)
	}
	return nil
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func RespondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, APIResponse{Success: true, Data: data})
}

func RespondAppError(w http.ResponseWriter, r *http.Request, appErr *AppError, details any) {
	RespondJSON(w, r, appErr.Status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		appErr = ErrInvalidRequest
	default:
		logging.FromContext(r.Context()).Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, r, appErr, nil)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"leadhunt-engine/internal/discover"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
	"leadhunt-engine/internal/workflow"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// errInvalidInput tags request problems found before any store call.
var errInvalidInput = errors.New("invalid input")

// ErrDisabled is returned by run builders whose feature is switched off in config.
var ErrDisabled = errors.New("feature disabled")

// statusFor maps domain errors onto the HTTP surface.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	var ce *domain.CollaboratorError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, discover.ErrAlreadyRunning):
		return http.StatusConflict, "already_running"
	case errors.Is(err, ErrDisabled):
		return http.StatusConflict, "disabled"
	case errors.Is(err, errInvalidInput),
		errors.Is(err, store.ErrInvalidLead),
		errors.Is(err, workflow.ErrInvalidStatus),
		errors.As(err, &verrs):
		return http.StatusBadRequest, "invalid_input"
	case errors.As(err, &ce):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
		loggerFrom(r.Context()).Error("request failed", errField(err)...)
	}
	WriteError(w, r, status, code, msg)
}

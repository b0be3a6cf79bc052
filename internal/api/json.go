package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// stateErrResponse carries the session state alongside a recoverable error so
// the page can render the notice.
type stateErrResponse struct {
	Error string        `json:"error"`
	State *session.View `json:"state"`
}

// errorStatus maps a domain error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNoMatch), errors.Is(err, apperr.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrEmptyPresentation),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrTransientFetch), errors.Is(err, apperr.ErrFolderMissing):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Internal errors are logged and
// their detail hidden.
func writeError(w http.ResponseWriter, err error, view *session.View) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("error", msg))
		msg = "internal error"
	}
	if view != nil {
		writeJSON(w, status, stateErrResponse{Error: msg, State: view})
		return
	}
	writeJSON(w, status, errorBody(msg))
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"pagegen/internal/generation"
	"pagegen/internal/logging"
	"pagegen/internal/tasks"
	"pagegen/internal/workspace"
)

// HTTPError is an error with the status and detail sent to the client.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return e.Detail
}

func badRequest(detail string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Detail: detail}
}

// statusFor maps domain errors to a status code. Anything unrecognised is
// a server error.
func statusFor(err error) int {
	var httpErr *HTTPError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, workspace.ErrNoSession), errors.Is(err, generation.ErrEmptyRequest):
		return http.StatusBadRequest
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// detailFor returns the client-facing message for err.
func detailFor(err error) string {
	switch {
	case errors.Is(err, workspace.ErrNoSession):
		return "No active session found"
	case errors.Is(err, tasks.ErrNotFound):
		return "Task not found"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerError("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ServerError("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"detail": detailFor(err)})
}

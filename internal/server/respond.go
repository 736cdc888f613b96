package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/omrelabs/omre/internal/shared"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors to HTTP status codes and writes a
// JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrUserNotFound),
		errors.Is(err, shared.ErrInstrumentNotFound),
		errors.Is(err, shared.ErrJobUnknown):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrJobRunning):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrPriceUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput)
	}
	return nil
}

package types

import (
	"errors"
	"net/http"
)

// Booking error taxonomy. Handlers translate these to HTTP statuses with
// ErrorStatus; everything else becomes a 500.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAuthorization     = errors.New("not allowed")
	ErrAlreadyCancelled  = errors.New("reservation already cancelled")
	ErrInconsistentState = errors.New("inconsistent reservation state")
	ErrRetryable         = errors.New("temporary failure, retry")
)

func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRetryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

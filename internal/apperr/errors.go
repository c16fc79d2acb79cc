package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every component.
// Components wrap these with fmt.Errorf("%w: ...") so callers can use errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrProvider     = errors.New("dial provider failed")
	ErrStorage      = errors.New("storage unavailable")
)

// Validation returns an ErrValidation carrying a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Storage wraps a driver error so it never leaks as an unclassified failure.
// nil stays nil, and already-classified errors pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Provider wraps an external dial failure.
func Provider(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrRateLimited, ErrProvider, ErrStorage} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error to the status code returned at the API edge.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to API clients.
// Storage and unknown failures are collapsed to a generic message.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "call could not be placed"
	default:
		return err.Error()
	}
}

package domain

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidEvent = errors.New("event name is required")
	ErrInvalidGroup = errors.New("group name is required")
	ErrInvalidUser  = errors.New("user id is required")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ToHTTP maps domain errors onto HTTP status codes.
func ToHTTP(err error) int {
	switch {
	case errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidGroup),
		errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr defines the error taxonomy shared by every service.
// Services wrap these sentinels with operation context; handlers map
// them to HTTP status codes with Status.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks rejected input: empty group name, no invitees,
	// blank hidden words and the like. Nothing was mutated.
	ErrValidation = errors.New("invalid input")

	// ErrPermission marks an operation the requester is not allowed to
	// perform: non-creator group administration, deleting another
	// sender's message, creator self-leave.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound marks a missing group, message or user.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a transient store failure; safe to retry.
	ErrUnavailable = errors.New("store unavailable")
)

func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

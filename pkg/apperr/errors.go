// Package apperr defines the error taxonomy shared by all Warden services.
//
// Services wrap these sentinels with fmt.Errorf("...: %w", ...) so callers can
// classify failures with errors.Is while keeping the operation context in the
// message. The HTTP layer maps each sentinel to a status code; anything that
// does not match a sentinel is treated as an internal error.
package apperr

import "errors"

var (
	// ErrInvalidArgument indicates a malformed identifier or empty required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the operation referenced a user, role, group or
	// grant subject that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique-constraint violation, such as a duplicate
	// role name or username.
	ErrConflict = errors.New("conflict")

	// ErrUnauthenticated indicates no identity context was present on the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the enforcement check denied the request.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a backing store could not be reached. Fatal for
	// the in-flight request, surfaced as a 5xx, never swallowed.
	ErrUnavailable = errors.New("unavailable")

	// ErrProtectedResource indicates an attempt to delete a preset role or
	// another resource the system refuses to remove.
	ErrProtectedResource = errors.New("protected resource")
)

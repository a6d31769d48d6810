// Package apperr defines the error kinds shared by the editor, the sync
// layer and the map registry.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an operation referenced a node, edge, map or
	// document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable means the document store could not be reached
	// or did not answer in time.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrValidationFailed means the input was rejected before any mutation.
	ErrValidationFailed = errors.New("validation failed")

	// ErrNoSession means no user is signed in.
	ErrNoSession = errors.New("no active session")

	// ErrForbidden means the signed-in user may not touch the document.
	ErrForbidden = errors.New("permission denied")
)

// NotFound wraps ErrNotFound with a description of what was missing.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Validation wraps ErrValidationFailed with a user-facing reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidationFailed)
}

// Unavailable wraps ErrRemoteUnavailable around the transport error.
func Unavailable(op string, err error) error {
	if errors.Is(err, ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrRemoteUnavailable, err)
}

// Kind returns a short label for the error kind, or "error" when err is
// not one of the known kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrValidationFailed):
		return "invalid"
	case errors.Is(err, ErrRemoteUnavailable):
		return "offline"
	case errors.Is(err, ErrNoSession):
		return "signed out"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoSession) {
		return "not signed in; run `mindmap login` first"
	}
	return err.Error()
}

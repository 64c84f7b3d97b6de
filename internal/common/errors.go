// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Error taxonomy for the review engine. Every failure surfaced by the engine
// wraps exactly one of these sentinels so callers can branch with errors.Is.
var (
	// ErrNetwork indicates a transient gateway failure; the same action may
	// be retried by the caller.
	ErrNetwork = errors.New("network failure")

	// ErrAccessDenied indicates the authenticated session is invalid or the
	// role is insufficient. The engine never retries; the caller must
	// re-authenticate.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation indicates user input was insufficient. Detected locally,
	// no gateway round-trip involved.
	ErrValidation = errors.New("validation failed")

	// ErrBusy indicates another mutating action is already in flight for the
	// session. Callers should not auto-retry rapidly.
	ErrBusy = errors.New("another action is in flight")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

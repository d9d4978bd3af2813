// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Input errors.
	ErrValidation  = errors.New("validation failed")
	ErrInvalidPair = errors.New("invalid match pair")

	// State errors.
	ErrConflict   = errors.New("conflicting match")
	ErrStaleState = errors.New("stale state")
	ErrNotFound   = errors.New("not found")

	// Numeric errors.
	ErrComputation = errors.New("computation failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInternal is what callers see in place of an unexpected failure.
	ErrInternal = errors.New("internal error")
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

// IsDomainError reports whether err belongs to the documented taxonomy and may
// be surfaced to callers as is.
func IsDomainError(err error) bool {
	for _, known := range []error{
		ErrValidation,
		ErrInvalidPair,
		ErrConflict,
		ErrStaleState,
		ErrNotFound,
		ErrComputation,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// Opaque logs unexpected errors and replaces them with ErrInternal.
// Domain errors pass through untouched.
func Opaque(err error, op string) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	LogError(err, "Unexpected failure", Fields{"operation": op})
	return fmt.Errorf("%s: %w", op, ErrInternal)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStaleState) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

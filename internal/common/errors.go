// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Analysis errors.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNoCustomers        = errors.New("no customers to segment")
	ErrTooFewCustomers    = errors.New("not enough customers for segmentation")
	ErrNotConverged       = errors.New("clustering did not fully converge")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError describes malformed input: a bad row, an out-of-range
// parameter or an empty population. It is surfaced to the caller, never fatal.
type ValidationError struct {
	Err     error
	Field   string
	Message string
	Row     int // 1-based source row, 0 when not row-scoped
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ComputationError reports a clustering run that stopped at its iteration cap.
// The accompanying result is still usable and is committed.
type ComputationError struct {
	Iterations int
	Cap        int
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%v after %d of %d iterations", ErrNotConverged, e.Iterations, e.Cap)
}

func (e *ComputationError) Unwrap() error {
	return ErrNotConverged
}

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

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if the caller may simply try the operation again.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrAnalysisInProgress) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError indicates user-correctable input: a bad state
// transition, an empty reason, a disallowed file, or an unauthorized
// reviewer. It is recovered at the HTTP boundary as a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// NewValidationError creates a ValidationError for a specific field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError indicates catalog corruption: a role that is not
// part of the closed catalog reached the hierarchy or the resolver.
// It is fatal for the operation and logged distinctly.
type ConfigurationError struct {
	Role    string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("configuration error for role %q: %s", e.Role, e.Message)
	}
	return "configuration error: " + e.Message
}

// NewConfigurationError creates a ConfigurationError for a role
func NewConfigurationError(role, message string) *ConfigurationError {
	return &ConfigurationError{Role: role, Message: message}
}

// ConflictError indicates a lost race or stale state: a duplicate
// assignment, a double approval, a transition on a terminal request.
// Callers must re-fetch and decide; it is never auto-retried.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// NewConflictError creates a ConflictError
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// RetryableError wraps a persistence or blob-storage timeout. It is
// safe for caller-directed retry with backoff and is never swallowed.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable for the named operation
func NewRetryableError(op string, err error) *RetryableError {
	return &RetryableError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsRetryable reports whether err is a RetryableError
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// WrapTimeout converts context expiry into a RetryableError so the
// caller can distinguish collaborator timeouts from permanent
// failures. Other errors pass through unchanged.
func WrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRetryableError(op, err)
	}
	return err
}

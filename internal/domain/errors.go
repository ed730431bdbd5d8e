package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is() checking. They form the complete error
// taxonomy surfaced by entity services: anything that is not NotFound,
// Validation, or Conflict is wrapped into an UnexpectedError before it
// crosses the service boundary.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
	ErrUnexpected = errors.New("unexpected error")
)

// MsgRequired is the standard per-field message for missing required fields.
const MsgRequired = "is required"

// ValidationError provides programmatic access to field-level validation
// failures. Use errors.Is(err, ErrValidation) for simple checks, or
// errors.As(err, &verr) to access verr.Fields for per-field error details.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// UnexpectedError wraps a storage or transport failure that has no place in
// the caller-facing taxonomy. The cause stays in the error chain for logs;
// Error() deliberately omits it so dispatchers can render the message
// without leaking storage-layer detail.
type UnexpectedError struct {
	Op    string
	Cause error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnexpected.Error(), e.Op)
}

func (e *UnexpectedError) Unwrap() []error {
	return []error{ErrUnexpected, e.Cause}
}

// Unexpectedf wraps cause into an UnexpectedError with a formatted operation
// description.
func Unexpectedf(cause error, format string, args ...any) error {
	return &UnexpectedError{Op: fmt.Sprintf(format, args...), Cause: cause}
}

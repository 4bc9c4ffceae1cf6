/*
errors.go - Centralized error kinds

PURPOSE:
  Every failure the service reports falls in one of four kinds. Domain
  packages wrap these with context; the API layer maps them to HTTP status
  codes with errors.Is.

ERROR KINDS:
  ErrAuthentication - no valid principal (401)
  ErrNotFound       - record absent or owned by someone else (404)
  ErrValidation     - bad input or insufficient balance (400)
  ErrInternal       - persistence failure (500)

  Records that exist but belong to another user are reported as not found.
  The service never confirms that another user's record exists.

USAGE:
  if errors.Is(err, generic.ErrValidation) {
      // client error, safe to show err.Error()
  }

SEE ALSO:
  - overtime/errors.go: InsufficientHoursError
  - api/handlers.go: writeServiceError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrAuthentication = errors.New("authentication required")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrInternal       = errors.New("internal error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a client input problem on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the kind of record that was not found.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Kind)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InternalError wraps an unexpected failure, usually from the store.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}

// Internal wraps err as an InternalError unless it already carries one of
// the error kinds above.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || errors.Is(err, ErrInternal) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller, not the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation)
}

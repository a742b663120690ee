package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/workstation-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when creating a record whose identifier is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when a user ID and PIN do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrInternalConsistency is returned when stored reservations break an
	// invariant, such as two active reservations sharing a day. It is not
	// retryable.
	ErrInternalConsistency = errors.New("application: internal consistency violated")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// ConflictError reports the active reservations a booking or renewal collides
// with, in chronological order without repeats.
type ConflictError struct {
	Conflicts []scheduler.Reservation
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	ids := make([]string, 0, len(c.Conflicts))
	for _, r := range c.Conflicts {
		ids = append(ids, r.ID)
	}
	return fmt.Sprintf("conflicts with %d reservation(s): %s", len(c.Conflicts), strings.Join(ids, ", "))
}

// InvalidStateError is returned when a reservation exists but is not in a
// state that allows the operation.
type InvalidStateError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	if e == nil {
		return ""
	}
	return "invalid state: " + e.Reason
}

// StorageError wraps a persistence failure. The operation left no partial
// state and may be retried.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying persistence error.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether retrying the operation may succeed.
func (e *StorageError) Retryable() bool {
	return e != nil
}

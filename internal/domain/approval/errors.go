package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a decision arrives for a task that is
	// no longer pending, or a second active flow would be created for the
	// same trigger. Expected under normal concurrent operation; callers
	// must treat it as a soft outcome, not a system error.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a flow, instance or task does not exist
	// or is not visible to the caller's tenant
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when the actor may not perform the
	// requested decision or mutation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned for malformed flow definitions or inputs
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited is returned when the rate limiter rejects a burst of
	// trigger or decision calls
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError describes why a flow definition or input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError carries the user-facing reason for a conflict, e.g.
// "task already resolved".
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PermissionDeniedError names the denied action.
type PermissionDeniedError struct {
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Action)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

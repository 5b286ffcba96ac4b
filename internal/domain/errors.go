package domain

import "fmt"

// ValidationError reports malformed or missing input. Field names the first
// input that failed validation so callers can re-prompt for it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError reports a lifecycle event that is not permitted
// from the entity's current state. The entity is left unchanged.
type InvalidTransitionError struct {
	From  string
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q is not permitted from state %q", e.Event, e.From)
}

// NewInvalidTransitionError creates an InvalidTransitionError.
func NewInvalidTransitionError(from, event string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, Event: event}
}

// InvalidStateError reports an operation attempted against an entity whose
// current state does not allow it (e.g. resolving an already-resolved
// proposal).
type InvalidStateError struct {
	Entity string
	State  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is in state %q which does not allow this operation", e.Entity, e.State)
}

// NewInvalidStateError creates an InvalidStateError.
func NewInvalidStateError(entity, state string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, State: state}
}

// ForbiddenError reports an authorization failure. No state change occurs.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NewForbiddenError creates a ForbiddenError.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// ConflictError reports a concurrent-mutation or duplicate-resource
// conflict. Callers may retry after refetching.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// NotFoundError reports a stale or unknown entity reference.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

package store

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing user, task, notification, message or chat.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError rejects input the store cannot accept, such as a malformed id.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ConflictError reports a uniqueness violation or a lost race. Details are
// returned to the client alongside Code.
type ConflictError struct {
	Message string
	Code    string
	Details map[string]any
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ForbiddenError reports that the caller may not touch the resource.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "forbidden"
}

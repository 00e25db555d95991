package domain

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a malformed dataset or filter. Operations return it
// before touching any state.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func invalidInput(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewInvalidInputError constructs an InvalidInputError for callers outside the package.
func NewInvalidInputError(field, format string, args ...any) error {
	return invalidInput(field, format, args...)
}

// IsInvalidInput reports whether err wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// EntityType names the kind of record referenced by ErrNotFound.
type EntityType string

// Entity types addressed by the stores.
const (
	EntityDataset EntityType = "dataset"
	EntityExport  EntityType = "export"
)

// ErrNotFound is returned when a named record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	var target ErrNotFound
	return errors.As(err, &target)
}

package agenda

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: a blank required field, an id
// out of range or a reference to a row that does not exist.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a well-formed id that matches no row.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// DuplicateError reports a uniqueness violation.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Field, e.Value)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

func isDomainError(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsDuplicate(err)
}

func blank(field string) error {
	return &ValidationError{Field: field, Message: "must not be empty"}
}

func badID(field string, id int64) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf("id must be greater than 0, got %d", id)}
}

func missingRef(field string, id int64) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s %d does not exist", field, id)}
}

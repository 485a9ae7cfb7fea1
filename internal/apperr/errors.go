// Package apperr defines the error kinds shared by the domain packages and
// mapped to HTTP statuses by the handlers.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("already exists")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrProfileMissing       = errors.New("user profile missing")
)

// FieldError names a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the fields that failed validation. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from field errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is a shorthand for a single-field validation error.
func Invalid(field, message string) error {
	return NewValidationError(FieldError{Field: field, Message: message})
}

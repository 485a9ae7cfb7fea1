package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("add student: %w", NewValidationError(
		FieldError{Field: "name", Message: "this field is required"},
		FieldError{Field: "year", Message: "must be one of: I II III IV"},
	))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Fields, 2)
	assert.Equal(t, "add student: invalid fields: name, year", err.Error())

	assert.Equal(t, ErrValidation.Error(), NewValidationError().Error())
	assert.True(t, errors.Is(Invalid("month", "out of range"), ErrValidation))
}

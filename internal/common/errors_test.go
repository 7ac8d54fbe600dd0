package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetails_LeavesSentinelUntouched(t *testing.T) {
	detailed := ErrNotFound.WithDetails("Issue not found.")

	assert.Nil(t, ErrNotFound.Details)
	assert.Equal(t, "Issue not found.", detailed.Details)
	assert.True(t, errors.Is(detailed, ErrNotFound))
	assert.False(t, errors.Is(detailed, ErrForbidden))
}

func TestIsAPIError_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading issue: %w", ErrForbidden)

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	_, ok = IsAPIError(errors.New("plain"))
	assert.False(t, ok)
}

func TestValidationError(t *testing.T) {
	err := NewValidationAPIError(map[string]string{"title": "Title is required."})

	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidationError(ErrUnprocessableEntity))
	assert.False(t, IsValidationError(errors.New("plain")))
}

type bindTarget struct {
	Email string `validate:"required,email"`
	Title string `validate:"min=3"`
}

func TestBindingError(t *testing.T) {
	verr := validator.New().Struct(bindTarget{Email: "nope", Title: "ab"})
	require.Error(t, verr)

	apiErr := BindingError(verr)
	assert.Equal(t, ValidationErrorCode, apiErr.Code)
	details, ok := apiErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "The email field must be a valid email address.", details["Email"])
	assert.Equal(t, "The title field must be at least 3 characters long.", details["Title"])

	malformed := BindingError(errors.New("unexpected EOF"))
	assert.True(t, errors.Is(malformed, ErrBadRequest))
	assert.Equal(t, "unexpected EOF", malformed.Details)
}

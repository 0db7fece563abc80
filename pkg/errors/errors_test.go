package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError_Is(t *testing.T) {
	err := &ConfigurationError{Kind: "archetype", ID: "ghost", Err: ErrNotFound}

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsFatal(err))
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), `archetype "ghost"`)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "age", Value: 17, Message: "must be at least 18"}
	assert.Equal(t, "validation failed for age (value: 17): must be at least 18", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	noValue := &ValidationError{Field: "name", Message: "required"}
	assert.Equal(t, "validation failed for name: required", noValue.Error())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"fetch", fmt.Errorf("wrap: %w", ErrFetchFailed), true},
		{"upload", ErrUploadFailed, true},
		{"contract", ErrContractViolation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

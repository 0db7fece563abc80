package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the engine packages
var (
	// Data integrity: bad reference data, abort the load
	ErrConfiguration = errors.New("configuration error")

	// Caller handed us a value outside its contract
	ErrContractViolation = errors.New("contract violation")

	// Missing persona/archetype/record
	ErrNotFound = errors.New("not found")

	// Transient collaborator failures, callers degrade gracefully
	ErrFetchFailed  = errors.New("fetch failed")
	ErrUploadFailed = errors.New("upload failed")

	ErrInvalidInput = errors.New("invalid input")
)

// ConfigurationError reports reference data that cannot be used, such as a
// persona pointing at an archetype that does not exist.
type ConfigurationError struct {
	Kind string // "archetype", "persona", ...
	ID   string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("configuration error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("configuration error (%s %q): %v", e.Kind, e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s (value: %v): %s",
			e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsNotFound checks if error indicates a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether the caller should degrade instead of failing
// the whole request.
func IsTransient(err error) bool {
	return errors.Is(err, ErrFetchFailed) || errors.Is(err, ErrUploadFailed)
}

// IsFatal reports errors that indicate bad data upstream.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrContractViolation)
}

package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for domain errors. Concrete error types below match them
// through errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrParticipantNotFound = errors.New("participant not found")
)

// ValidationError names the input field that was rejected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// InvalidField wraps a lower level parse error as a ValidationError for field.
func InvalidField(field, value string, err error) *ValidationError {
	reason := "invalid value"
	if err != nil {
		reason = err.Error()
	}
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// ParticipantNotFoundError reports an identity that could not be resolved
// during a multi-party search.
type ParticipantNotFoundError struct {
	Email string
}

func (e *ParticipantNotFoundError) Error() string {
	return "participant not found: " + e.Email
}

func (e *ParticipantNotFoundError) Is(target error) bool { return target == ErrParticipantNotFound }

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidState         = errors.New("invalid state transition")
	ErrForbidden            = errors.New("forbidden")
)

// ValidationError reports malformed or missing input with a field-level
// message. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ExternalBookingError carries the upstream status and message when the
// remote reservation service rejects a request, or Status 0 when the
// service is unreachable after retries.
type ExternalBookingError struct {
	Status  int
	Message string
}

func (e *ExternalBookingError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("reservation service unreachable: %s", e.Message)
	}
	return fmt.Sprintf("reservation service error (status %d): %s", e.Status, e.Message)
}

// ConfigurationError is a fatal local misconfiguration, not retryable.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Key)
}

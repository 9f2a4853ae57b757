package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets a record id that no longer exists.
	ErrNotFound = errors.New("mcq not found")
	// ErrDocumentNotFound is returned by document backends when nothing has been persisted yet.
	ErrDocumentNotFound = errors.New("queue document not found")
	// ErrNoSubscribers indicates a broadcast destination had nobody to deliver to.
	ErrNoSubscribers = errors.New("no subscribers connected")
	// ErrAnnouncementsUnsupported is returned when the delivery port cannot send plain text.
	ErrAnnouncementsUnsupported = errors.New("announcements not supported by delivery port")
	// ErrSchedulerStopped is returned when work is requested after shutdown.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// ValidationError describes malformed user input. It is terminal for the request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// PersistenceError wraps a failure of the document backend.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError wraps a failure reported by the delivery port for one record.
type DeliveryError struct {
	ID  int64
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver mcq %d: %v", e.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err carries a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

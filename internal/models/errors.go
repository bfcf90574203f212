package models

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound        = errors.New("models: job not found")
	ErrUserNotFound       = errors.New("models: user not found")
	ErrLanguageNotFound   = errors.New("models: language not found")
	ErrNoActiveAssignment = errors.New("models: no active assignment")

	// ErrJobTaken is returned when the pending -> assigned check-and-set
	// finds the job no longer pending. Exactly one of two racing accepts
	// can win.
	ErrJobTaken = errors.New("models: job already accepted by another translator")

	// ErrAlreadyBooked is returned when the translator already has an
	// active assignment due at the same time.
	ErrAlreadyBooked = errors.New("models: translator already booked at that time")

	// ErrLateCancellation rejects translator cancellations within 24 hours
	// of the session. The booking stays untouched.
	ErrLateCancellation = errors.New("models: bookings within 24 hours cannot be cancelled here, please phone the office")
)

// ValidationError rejects a request before any mutation. Field names the
// offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

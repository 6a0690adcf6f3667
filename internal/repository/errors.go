// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service to distinguish between different failure scenarios
// without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an attraction, booking or user does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing
// unique key (booking id, credential payload, attraction name).  The
// caller may retry with fresh identifiers.
var ErrConflict = errors.New("conflict")

// ErrAlreadyValidated is returned when a booking's one-time validation
// flag is already set.
var ErrAlreadyValidated = errors.New("booking already validated")

// ErrBookingClosed is returned when a booking can no longer be validated
// because it was cancelled, expired or completed.
var ErrBookingClosed = errors.New("booking is closed")

// ErrInvalidTransition is returned when a status change is not allowed
// from the booking's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrEmailExists is returned when a user with the same email exists.
var ErrEmailExists = errors.New("email already exists")

// CapacityError reports that a slot cannot admit the requested number
// of tickets.  Available is the number of tickets still free at the
// time of the rejection.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("slot capacity exceeded: %d tickets available", e.Available)
}

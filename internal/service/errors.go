package service

import (
	"errors"
	"fmt"
)

// Code is a stable rejection reason reported to callers.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeInvalidBooking    Code = "INVALID_BOOKING"
	CodeTampered          Code = "TAMPERED"
	CodeAlreadyValidated  Code = "ALREADY_VALIDATED"
	CodeTooEarly          Code = "TOO_EARLY"
	CodeExpired           Code = "EXPIRED"
	CodeCancelled         Code = "CANCELLED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConflictDuplicate Code = "CONFLICT_DUPLICATE"
	CodeDependencyFailure Code = "DEPENDENCY_FAILURE"
)

// Rejection is a structured business outcome.  Every error returned by
// the services in this package is a *Rejection.  Available is only set
// for CAPACITY_EXCEEDED.
type Rejection struct {
	Code      Code
	Message   string
	Available *int
	Err       error // underlying cause, never shown to clients
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Code, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(code Code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

func capacityExceeded(available int) *Rejection {
	return &Rejection{
		Code:      CodeCapacityExceeded,
		Message:   fmt.Sprintf("Only %d tickets left for this slot.", available),
		Available: &available,
	}
}

// dependency wraps an unexpected datastore or object store failure.
func dependency(op string, err error) *Rejection {
	return &Rejection{Code: CodeDependencyFailure, Message: op + " failed", Err: err}
}

// AsRejection extracts the *Rejection from err.  Errors that are not
// rejections are reported as DEPENDENCY_FAILURE.
func AsRejection(err error) *Rejection {
	if err == nil {
		return nil
	}
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}
	return dependency("request", err)
}

// IsCode reports whether err is a rejection with the given code.
func IsCode(err error, code Code) bool {
	var r *Rejection
	return errors.As(err, &r) && r.Code == code
}

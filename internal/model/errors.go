package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrOutOfWindow         = errors.New("date outside booking window")
	ErrNoAvailability      = errors.New("no available tables")
	ErrAllocationTimeout   = errors.New("allocation timed out")
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrStorage             = errors.New("storage failure")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicateRequest    = errors.New("duplicate request in progress")

	// ErrTableTaken is returned by storage when an insert would overlap
	// a confirmed booking on the same table.
	ErrTableTaken = errors.New("table already booked for this window")
)

// ValidationError describes a caller mistake on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

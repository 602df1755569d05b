package models

import (
	"errors"
	"fmt"
)

// Validation failures are raised before any mutation is applied; the caller
// discards the whole operation.
type ValidationKind string

const (
	ValidationMissingReference    ValidationKind = "MissingReference"
	ValidationNonPositiveQuantity ValidationKind = "NonPositiveQuantity"
	ValidationMismatchedKind      ValidationKind = "MismatchedKind"
)

type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(kind ValidationKind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// InsufficientStockError aborts the enclosing transaction; stock is never
// clamped to zero.
type InsufficientStockError struct {
	MedicineId int
	Available  int
	Requested  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d in stock", e.Available)
}

type IntegrityKind string

const (
	IntegrityConcurrentModification IntegrityKind = "ConcurrentModification"
)

// IntegrityError surfaces when a row expected to exist was concurrently
// deleted. Fatal for the request; never retried.
type IntegrityError struct {
	Kind    IntegrityKind
	Message string
	Err     error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func newConcurrentModification(entity string, id interface{}, err error) *IntegrityError {
	return &IntegrityError{
		Kind:    IntegrityConcurrentModification,
		Message: fmt.Sprintf("%s %v no longer exists", entity, id),
		Err:     err,
	}
}

// NewIntegrityNotFound is the exported form for callers outside the
// package that hit a concurrently deleted row.
func NewIntegrityNotFound(entity string, id interface{}, err error) *IntegrityError {
	return newConcurrentModification(entity, id, err)
}

// IsNotFound reports whether err stems from a missing row.
func IsNotFound(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie) && ie.Kind == IntegrityConcurrentModification
}

package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"medbook/internal/models"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflict               = errors.New("slot is no longer available")
	ErrConcurrentModification = errors.New("concurrent modification")

	ErrPastDate   = fmt.Errorf("%w: cannot book in the past", ErrValidation)
	ErrDateTooFar = fmt.Errorf("%w: date is beyond the booking horizon", ErrValidation)
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError is returned when an order cannot move to the requested status.
type TransitionError struct {
	OrderID uuid.UUID
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// IsInfrastructure reports whether err is not one of the business outcomes.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	for _, known := range []error{
		ErrNotFound,
		ErrValidation,
		ErrInvalidStateTransition,
		ErrConflict,
		ErrConcurrentModification,
		context.Canceled,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

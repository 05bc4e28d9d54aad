package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"medbook/internal/models"
)

func TestErrorWrapping(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		err := Invalid("duration_minutes", "must be positive")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "duration_minutes: must be positive", err.Error())

		var verr *ValidationError
		assert.True(t, errors.As(fmt.Errorf("create: %w", err), &verr))
		assert.Equal(t, "duration_minutes", verr.Field)
	})

	t.Run("Transition", func(t *testing.T) {
		id := uuid.New()
		err := &TransitionError{OrderID: id, From: models.OrderCompleted, To: models.OrderApproved}
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		assert.Contains(t, err.Error(), "completed")
	})

	t.Run("HorizonErrorsAreValidation", func(t *testing.T) {
		assert.ErrorIs(t, ErrPastDate, ErrValidation)
		assert.ErrorIs(t, ErrDateTooFar, ErrValidation)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.ErrorIs(t, NotFound("order", uuid.New()), ErrNotFound)
	})
}

func TestIsInfrastructure(t *testing.T) {
	assert.False(t, IsInfrastructure(nil))
	assert.False(t, IsInfrastructure(fmt.Errorf("approve: %w", ErrConflict)))
	assert.False(t, IsInfrastructure(Invalid("x", "y")))
	assert.False(t, IsInfrastructure(context.Canceled))
	assert.True(t, IsInfrastructure(errors.New("disk I/O error")))
	assert.True(t, IsInfrastructure(context.DeadlineExceeded))
}

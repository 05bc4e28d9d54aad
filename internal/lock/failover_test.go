package lock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailoverLocker(t *testing.T) {
	primary := new(mockLocker)
	fallback := new(mockLocker)
	logger := zerolog.New(io.Discard)
	l := NewFailoverLocker(primary, fallback, &logger)
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Lock", ctx, "k1").Return(noop, nil).Once()

		unlock, err := l.Lock(ctx, "k1")
		require.NoError(t, err)
		unlock()
		assert.False(t, l.IsDown())
		primary.AssertExpectations(t)
	})

	t.Run("ContentionDoesNotFailOver", func(t *testing.T) {
		primary.On("Lock", ctx, "k2").Return(nil, ErrLockTimeout).Once()

		_, err := l.Lock(ctx, "k2")
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.False(t, l.IsDown())
		fallback.AssertNotCalled(t, "Lock", ctx, "k2")
	})

	t.Run("PrimaryFailureUsesFallback", func(t *testing.T) {
		primary.On("Lock", ctx, "k3").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Lock", ctx, "k3").Return(noop, nil).Once()

		_, err := l.Lock(ctx, "k3")
		require.NoError(t, err)
		assert.True(t, l.IsDown())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackUntilRecoveryWindow", func(t *testing.T) {
		fallback.On("Lock", ctx, "k4").Return(noop, nil).Once()

		_, err := l.Lock(ctx, "k4")
		require.NoError(t, err)
		primary.AssertNotCalled(t, "Lock", ctx, "k4")
		fallback.AssertExpectations(t)
	})

	t.Run("Recovers", func(t *testing.T) {
		l.lastCheck.Store(0)
		primary.On("Lock", ctx, "k5").Return(noop, nil).Once()

		_, err := l.Lock(ctx, "k5")
		require.NoError(t, err)
		assert.False(t, l.IsDown())
		primary.AssertExpectations(t)
	})
}

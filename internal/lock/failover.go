package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"medbook/internal/domain"
)

const recoveryInterval = time.Minute

// FailoverLocker uses primary until it errors, then fallback, probing
// primary again once per recoveryInterval.
type FailoverLocker struct {
	primary   domain.Locker
	fallback  domain.Locker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverLocker) Lock(ctx context.Context, key string) (func(), error) {
	if !l.isDown.Load() || time.Since(time.Unix(0, l.lastCheck.Load())) > recoveryInterval {
		unlock, err := l.primary.Lock(ctx, key)
		if err == nil {
			if l.isDown.CompareAndSwap(true, false) {
				l.logger.Info().Msg("Primary lock backend recovered")
			}
			return unlock, nil
		}
		if isContention(err) {
			return nil, err
		}
		if !l.isDown.Swap(true) {
			l.logger.Error().Err(err).Msg("Primary lock backend failed, falling back to in-process locks")
		}
		l.lastCheck.Store(time.Now().UnixNano())
	}

	return l.fallback.Lock(ctx, key)
}

// IsDown reports whether the fallback is in use.
func (l *FailoverLocker) IsDown() bool {
	return l.isDown.Load()
}

func isContention(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medbook/internal/config"
	"medbook/internal/domain"
	"medbook/internal/models"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for schedule lock")

// Key names the lock guarding one professional's schedule on one day.
func Key(professionalID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("schedule:%s:%s", professionalID, models.DateOf(day).Format(models.DateLayout))
}

// NoopLocker never blocks. The slot reservation update alone keeps bookings exclusive.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// New builds the locker selected by cfg. A redis locker falls back to
// in-process locks while redis is unreachable.
func New(cfg config.LockConfig, client *redis.Client, logger *zerolog.Logger) domain.Locker {
	memory := NewMemoryLocker(cfg.AcquireTimeout)
	switch cfg.Backend {
	case config.LockBackendNone:
		return NoopLocker{}
	case config.LockBackendRedis:
		if client == nil {
			logger.Warn().Msg("Redis lock backend requested without a client, using in-process locks")
			return memory
		}
		return NewFailoverLocker(NewRedisLocker(client, cfg.TTL, cfg.AcquireTimeout), memory, logger)
	default:
		return memory
	}
}

func acquireContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitError(key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
	return err
}

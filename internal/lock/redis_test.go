package lock

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbook/internal/config"
)

func TestRedisLocker(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	t.Run("AcquireAndRelease", func(t *testing.T) {
		unlock, err := l.Lock(ctx, "schedule:a")
		require.NoError(t, err)
		assert.True(t, s.Exists(redisKeyPrefix+"schedule:a"))

		_, err = l.Lock(ctx, "schedule:a")
		assert.ErrorIs(t, err, ErrLockTimeout)

		unlock()
		assert.False(t, s.Exists(redisKeyPrefix+"schedule:a"))

		unlock, err = l.Lock(ctx, "schedule:a")
		require.NoError(t, err)
		unlock()
	})

	t.Run("LeaseExpires", func(t *testing.T) {
		_, err := l.Lock(ctx, "schedule:b")
		require.NoError(t, err)

		s.FastForward(2 * time.Second)

		unlock, err := l.Lock(ctx, "schedule:b")
		require.NoError(t, err)
		unlock()
	})

	t.Run("UnlockKeepsForeignLease", func(t *testing.T) {
		unlock, err := l.Lock(ctx, "schedule:c")
		require.NoError(t, err)

		// Lease expired and was taken by someone else.
		s.FastForward(2 * time.Second)
		require.NoError(t, s.Set(redisKeyPrefix+"schedule:c", "other-owner"))

		unlock()
		got, err := s.Get(redisKeyPrefix + "schedule:c")
		require.NoError(t, err)
		assert.Equal(t, "other-owner", got)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, l.Ping(ctx))
	})

	t.Run("NilClient", func(t *testing.T) {
		_, err := NewRedisLocker(nil, time.Second, time.Second).Lock(ctx, "x")
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	logger := zerolog.New(io.Discard)
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	assert.IsType(t, NoopLocker{}, New(config.LockConfig{Backend: config.LockBackendNone}, nil, &logger))
	assert.IsType(t, &MemoryLocker{}, New(config.LockConfig{Backend: config.LockBackendMemory}, nil, &logger))
	assert.IsType(t, &MemoryLocker{}, New(config.LockConfig{Backend: config.LockBackendRedis}, nil, &logger))
	assert.IsType(t, &FailoverLocker{}, New(config.LockConfig{Backend: config.LockBackendRedis}, client, &logger))
}

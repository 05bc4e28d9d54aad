package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "medbook:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock shared by every instance using the same redis.
type RedisLocker struct {
	client         *redis.Client
	ttl            time.Duration
	acquireTimeout time.Duration
	retry          RetryPolicy
}

func NewRedisLocker(client *redis.Client, ttl, acquireTimeout time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:         client,
		ttl:            ttl,
		acquireTimeout: acquireTimeout,
		retry: RetryPolicy{
			InitialDelay:  10 * time.Millisecond,
			MaxDelay:      200 * time.Millisecond,
			BackoffFactor: 2,
		},
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	ctx, cancel := acquireContext(ctx, l.acquireTimeout)
	defer cancel()

	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitError(key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire redis lock: %w", err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}
		if l.retry.Exhausted(attempt) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		if err := l.retry.Wait(ctx, attempt); err != nil {
			return nil, waitError(key, err)
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) func() {
	return func() {
		// The caller's context may already be cancelled; the lease still has to go.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}
}

// Ping проверяет соединение с Redis
func (l *RedisLocker) Ping(ctx context.Context) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return l.client.Ping(ctx).Err()
}

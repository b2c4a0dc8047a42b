package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisFailureCounter stores micro-quiz failure counts as Redis keys
// with a TTL, so the lockout window survives process restarts and is
// shared across instances.
type RedisFailureCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFailureCounter(client *redis.Client, ttl time.Duration) *RedisFailureCounter {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisFailureCounter{client: client, ttl: ttl}
}

func failureKey(principalID, moduleID uuid.UUID) string {
	return fmt.Sprintf("quiz_failures:%s:%s", principalID, moduleID)
}

func (c *RedisFailureCounter) Count(ctx context.Context, principalID, moduleID uuid.UUID) (int, error) {
	count, err := c.client.Get(ctx, failureKey(principalID, moduleID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *RedisFailureCounter) Increment(ctx context.Context, principalID, moduleID uuid.UUID) (int, error) {
	key := failureKey(principalID, moduleID)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// Refresh the window on every failure.
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		return int(count), err
	}
	return int(count), nil
}

func (c *RedisFailureCounter) Reset(ctx context.Context, principalID, moduleID uuid.UUID) error {
	return c.client.Del(ctx, failureKey(principalID, moduleID)).Err()
}

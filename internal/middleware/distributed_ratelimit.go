package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRateLimiter is a fixed-window counter shared through Redis, so every
// instance behind a load balancer enforces the same budget.
type RedisRateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisRateLimiter allows limit requests per window and key.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisRateLimiter{redis: client, limit: int64(limit), window: window, prefix: prefix}
}

func (rl *RedisRateLimiter) key(k string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, k)
}

// Allow increments the window counter for key. On Redis errors it reports
// true together with the error.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	// The first hit opens the window.
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}
	return count <= rl.limit, nil
}

// Remaining returns the number of requests left in the current window.
func (rl *RedisRateLimiter) Remaining(ctx context.Context, key string) (int64, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int64()
	if err == redis.Nil {
		return rl.limit, nil
	}
	if err != nil {
		return 0, err
	}
	if remaining := rl.limit - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// Reset clears the counter for key.
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// Ping checks Redis connectivity.
func (rl *RedisRateLimiter) Ping(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}

package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"routecast/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.DispatchLimiter = (*RedisRouteLimiter)(nil)

// RedisRouteLimiter caps how many dispatches a single route may trigger per
// minute, using a Redis sorted set as a sliding window. It protects the
// directory and the store from a misbehaving producer replaying events.
type RedisRouteLimiter struct {
	client       *redis.Client
	maxPerMinute int
	window       time.Duration
}

// NewRedisRouteLimiter creates a new Redis-based per-route dispatch limiter.
func NewRedisRouteLimiter(redisAddr, password string, db int, maxPerMinute int) *RedisRouteLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisRouteLimiter{
		client:       client,
		maxPerMinute: maxPerMinute,
		window:       time.Minute,
	}
}

// Allow checks whether another dispatch for the route may proceed. Uses a
// sorted set with timestamps as scores for a sliding window counter.
func (r *RedisRouteLimiter) Allow(ctx context.Context, route string) (bool, error) {
	key := fmt.Sprintf("routecast:dispatchlimit:%s", route)
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()

	// Remove expired entries (outside the sliding window)
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count remaining entries in the window
	countCmd := pipe.ZCard(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("checking route dispatch limit: %w", err)
	}

	count := countCmd.Val()

	// If at or over the limit, deny
	if count >= int64(r.maxPerMinute) {
		return false, nil
	}

	// Generate a unique member to avoid collisions on concurrent dispatches
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}
	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute) // TTL slightly longer than window for cleanup

	_, err = pipe2.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("recording dispatch limit entry: %w", err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisRouteLimiter) Close() error {
	return r.client.Close()
}

package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "univia:rl:"

// RedisStore is the CounterStore backed by redis, for deployments that
// need limits shared across instances. INCR is atomic on the server, so
// concurrent requests to the same key never lose updates; redis TTL
// expiry replaces the in-memory sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()
	full := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	ttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("security: redis incr: %w", err)
	}

	count := incr.Val()
	remaining := ttl.Val()
	if count == 1 || remaining < 0 {
		// New window: start the expiry clock.
		if err := s.client.PExpire(ctx, full, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("security: redis expire: %w", err)
		}
		return count, now, nil
	}
	windowStart := now.Add(remaining - window)
	return count, windowStart, nil
}

// Buckets implements CounterStore via a prefix scan.
func (s *RedisStore) Buckets(ctx context.Context) ([]Bucket, error) {
	now := time.Now()
	var out []Bucket
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		count, err := s.client.Get(ctx, full).Int64()
		if err != nil {
			continue
		}
		ttl, err := s.client.PTTL(ctx, full).Result()
		if err != nil || ttl < 0 {
			continue
		}
		out = append(out, Bucket{Key: full[len(redisKeyPrefix):], Count: count, ResetAt: now.Add(ttl)})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("security: redis scan: %w", err)
	}
	return out, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "univia:lockout:"

// LockoutStore counts failed login attempts per login in redis. A login
// whose counter reaches the threshold is locked until the TTL expires.
type LockoutStore struct {
	client    *redis.Client
	threshold int
	ttl       time.Duration
}

// NewLockoutStore builds a store with the configured threshold and TTL.
func NewLockoutStore(client *redis.Client, threshold int, ttl time.Duration) *LockoutStore {
	return &LockoutStore{client: client, threshold: threshold, ttl: ttl}
}

// RecordFailure counts one failed attempt and reports whether the login
// is now locked.
func (s *LockoutStore) RecordFailure(ctx context.Context, login string) (bool, error) {
	key := lockoutKeyPrefix + login
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("auth: lockout incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return false, fmt.Errorf("auth: lockout expire: %w", err)
		}
	}
	return count >= int64(s.threshold), nil
}

// Locked reports whether a login is currently locked.
func (s *LockoutStore) Locked(ctx context.Context, login string) (bool, error) {
	count, err := s.client.Get(ctx, lockoutKeyPrefix+login).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("auth: lockout get: %w", err)
	}
	return count >= int64(s.threshold), nil
}

// Reset clears the counter after a successful login.
func (s *LockoutStore) Reset(ctx context.Context, login string) error {
	if err := s.client.Del(ctx, lockoutKeyPrefix+login).Err(); err != nil {
		return fmt.Errorf("auth: lockout reset: %w", err)
	}
	return nil
}

// LockedCount counts currently locked logins. Feeds the security stats
// aggregator.
func (s *LockoutStore) LockedCount(ctx context.Context) (int, error) {
	locked := 0
	iter := s.client.Scan(ctx, 0, lockoutKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count, err := s.client.Get(ctx, iter.Val()).Int64()
		if err != nil {
			continue
		}
		if count >= int64(s.threshold) {
			locked++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("auth: lockout scan: %w", err)
	}
	return locked, nil
}

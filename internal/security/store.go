// Package security implements the enforcement pipeline that runs for
// every request regardless of authorization outcome: multi-category rate
// limiting, suspicious-activity detection, security event recording and
// live statistics.
package security

import (
	"context"
	"time"
)

// Bucket is a read-only view of one fixed-window counter.
type Bucket struct {
	Key     string
	Count   int64
	ResetAt time.Time
}

// CounterStore is the keyed fixed-window counter behind the rate limiter.
// Incr evaluates the window and increments as one atomic operation: it
// resets the counter to 1 when the window has expired, otherwise
// increments it, and returns the resulting count with the window start.
// An in-memory and a redis implementation share this contract.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)
	// Buckets snapshots the live counters for statistics.
	Buckets(ctx context.Context) ([]Bucket, error)
}

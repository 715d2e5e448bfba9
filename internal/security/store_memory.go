package security

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 16

// sweepGrace keeps expired buckets around briefly so a denial issued at
// the window edge still reports a consistent reset time.
const sweepGrace = time.Minute

type memoryBucket struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

type memoryShard struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

// MemoryStore is the in-process CounterStore. Keys are sharded so
// concurrent traffic to distinct identities does not contend on one lock;
// traffic to the same key serializes on its shard, making the
// check-then-increment atomic per key.
type MemoryStore struct {
	shards [memoryShards]*memoryShard
	now    func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{buckets: make(map[string]*memoryBucket)}
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShards]
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	b, ok := shard.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(b.window)) {
		b = &memoryBucket{count: 1, windowStart: now, window: window}
		shard.buckets[key] = b
		return 1, now, nil
	}
	b.count++
	return b.count, b.windowStart, nil
}

// Buckets implements CounterStore.
func (s *MemoryStore) Buckets(_ context.Context) ([]Bucket, error) {
	out := make([]Bucket, 0, 64)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, b := range shard.buckets {
			out = append(out, Bucket{Key: key, Count: b.count, ResetAt: b.windowStart.Add(b.window)})
		}
		shard.mu.Unlock()
	}
	return out, nil
}

// Sweep evicts buckets past expiry plus the grace period. Expired keys are
// collected under the shard lock and deleted under the same lock, so a
// foreground Incr can never race the sweep into resurrecting a bucket
// mid-delete.
func (s *MemoryStore) Sweep(now time.Time) int {
	evicted := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, b := range shard.buckets {
			if now.After(b.windowStart.Add(b.window + sweepGrace)) {
				delete(shard.buckets, key)
				evicted++
			}
		}
		shard.mu.Unlock()
	}
	return evicted
}

// Run sweeps periodically until the context is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

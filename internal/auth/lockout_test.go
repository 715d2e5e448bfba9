package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockoutStore(t *testing.T, threshold int, ttl time.Duration) (*LockoutStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLockoutStore(client, threshold, ttl), mr
}

func TestLockoutThreshold(t *testing.T) {
	store, _ := lockoutStore(t, 3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		locked, err := store.RecordFailure(ctx, "jdupont")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d must not lock", i)
	}

	locked, err := store.RecordFailure(ctx, "jdupont")
	require.NoError(t, err)
	assert.True(t, locked, "third failure reaches the threshold")

	locked, err = store.Locked(ctx, "jdupont")
	require.NoError(t, err)
	assert.True(t, locked)

	// Another login is untouched.
	locked, err = store.Locked(ctx, "mmartin")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutReset(t *testing.T) {
	store, _ := lockoutStore(t, 2, time.Hour)
	ctx := context.Background()

	_, err := store.RecordFailure(ctx, "jdupont")
	require.NoError(t, err)
	_, err = store.RecordFailure(ctx, "jdupont")
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "jdupont"))

	locked, err := store.Locked(ctx, "jdupont")
	require.NoError(t, err)
	assert.False(t, locked, "reset clears the counter")
}

func TestLockoutExpiry(t *testing.T) {
	store, mr := lockoutStore(t, 2, time.Minute)
	ctx := context.Background()

	_, err := store.RecordFailure(ctx, "jdupont")
	require.NoError(t, err)
	locked, err := store.RecordFailure(ctx, "jdupont")
	require.NoError(t, err)
	require.True(t, locked)

	mr.FastForward(time.Minute + time.Second)

	locked, err = store.Locked(ctx, "jdupont")
	require.NoError(t, err)
	assert.False(t, locked, "lock expires with the TTL")
}

func TestLockedCount(t *testing.T) {
	store, _ := lockoutStore(t, 2, time.Hour)
	ctx := context.Background()

	for _, login := range []string{"a", "a", "b", "b", "c"} {
		_, err := store.RecordFailure(ctx, login)
		require.NoError(t, err)
	}

	count, err := store.LockedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "a and b are locked, c is not")
}

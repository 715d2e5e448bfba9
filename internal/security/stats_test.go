package security

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubLockouts struct {
	locked int
	err    error
}

func (s stubLockouts) LockedCount(context.Context) (int, error) {
	return s.locked, s.err
}

func TestSnapshot(t *testing.T) {
	store, _ := frozenStore(time.Now())
	limiter := NewLimiter(store, map[Category]Rule{
		CategoryLogin: {Max: 1, Window: time.Hour},
	}, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, "ip:1.1.1.1", CategoryLogin); err != nil {
			t.Fatal(err)
		}
	}

	detector := NewDetector(DetectorConfig{VolumeThreshold: 1, VolumeWindow: time.Hour})
	detector.Analyze(9, "", "", "/", "GET")
	detector.Analyze(9, "", "", "/", "GET")

	agg := NewAggregator(limiter, detector, stubLockouts{locked: 3}, nil)
	stats := agg.Snapshot(ctx)

	if stats.RateLimitViolations != 1 {
		t.Fatalf("rateLimitViolations = %d, want 1", stats.RateLimitViolations)
	}
	if stats.SuspiciousActivities != 1 {
		t.Fatalf("suspiciousActivities = %d, want 1", stats.SuspiciousActivities)
	}
	if stats.LockedAccounts != 3 {
		t.Fatalf("lockedAccounts = %d, want 3", stats.LockedAccounts)
	}
	if want := 1 + 1 + 3; stats.ActiveAlerts != want {
		t.Fatalf("activeAlerts = %d, want %d", stats.ActiveAlerts, want)
	}
}

func TestSnapshotFailedSourceReportsZero(t *testing.T) {
	agg := NewAggregator(nil, nil, stubLockouts{err: errors.New("redis down")}, nil)
	stats := agg.Snapshot(context.Background())

	if stats.LockedAccounts != 0 || stats.ActiveAlerts != 0 {
		t.Fatalf("stats = %+v, want zeros on source failure", stats)
	}
}

package security

import (
	"context"
	"testing"
	"time"
)

func frozenStore(start time.Time) (*MemoryStore, *time.Time) {
	current := start
	s := NewMemoryStore()
	s.now = func() time.Time { return current }
	return s, &current
}

func TestCheckFixedWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, clock := frozenStore(start)
	limiter := NewLimiter(store, map[Category]Rule{
		CategoryLogin: {Max: 5, Window: time.Minute},
	}, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := limiter.Check(ctx, "ip:10.0.0.1", CategoryLogin)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d within budget denied", i)
		}
		if want := int64(5 - i); result.Remaining != want {
			t.Fatalf("request %d remaining = %d, want %d", i, result.Remaining, want)
		}
	}

	result, err := limiter.Check(ctx, "ip:10.0.0.1", CategoryLogin)
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("sixth request in the window must be denied")
	}
	if result.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", result.Remaining)
	}
	if result.RetryAfter < 1 {
		t.Fatalf("retryAfter = %d, want >= 1", result.RetryAfter)
	}
	if want := start.Add(time.Minute); !result.ResetTime.Equal(want) {
		t.Fatalf("resetTime = %v, want %v", result.ResetTime, want)
	}

	// A fresh window grants a fresh budget.
	*clock = start.Add(time.Minute)
	result, err = limiter.Check(ctx, "ip:10.0.0.1", CategoryLogin)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatal("first request of the next window denied")
	}
	if result.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4", result.Remaining)
	}
}

func TestCheckIndependentBudgets(t *testing.T) {
	store, _ := frozenStore(time.Now())
	limiter := NewLimiter(store, map[Category]Rule{
		CategoryLogin:  {Max: 1, Window: time.Minute},
		CategoryUpload: {Max: 1, Window: time.Minute},
	}, nil)
	ctx := context.Background()

	if r, _ := limiter.Check(ctx, "user:1", CategoryLogin); !r.Allowed {
		t.Fatal("login budget exhausted too early")
	}
	if r, _ := limiter.Check(ctx, "user:1", CategoryLogin); r.Allowed {
		t.Fatal("login budget not enforced")
	}

	// Same identity, different category: untouched budget.
	if r, _ := limiter.Check(ctx, "user:1", CategoryUpload); !r.Allowed {
		t.Fatal("upload budget consumed by login traffic")
	}
	// Same category, different identity: untouched budget.
	if r, _ := limiter.Check(ctx, "user:2", CategoryLogin); !r.Allowed {
		t.Fatal("login budget shared across identities")
	}
}

func TestRuleFallsBackToGlobal(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[Category]Rule{
		CategoryGlobal: {Max: 7, Window: time.Hour},
	}, nil)

	rule := limiter.Rule(Category("unconfigured"))
	if rule.Max != 7 || rule.Window != time.Hour {
		t.Fatalf("fallback rule = %+v, want the global budget", rule)
	}
}

func TestCheckZeroBudgetDisabled(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[Category]Rule{
		CategoryAdmin: {Max: 0, Window: time.Hour},
	}, nil)

	result, err := limiter.Check(context.Background(), "user:1", CategoryAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatal("a zero budget disables the category instead of blocking it")
	}
}

func TestOverLimitCount(t *testing.T) {
	start := time.Now()
	store, _ := frozenStore(start)
	limiter := NewLimiter(store, map[Category]Rule{
		CategoryLogin: {Max: 2, Window: time.Hour},
		CategoryUser:  {Max: 10, Window: time.Hour},
	}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "ip:10.0.0.9", CategoryLogin); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := limiter.Check(ctx, "user:4", CategoryUser); err != nil {
		t.Fatal(err)
	}

	over, err := limiter.OverLimitCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if over != 1 {
		t.Fatalf("over-limit buckets = %d, want 1", over)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Now()
	if got := retryAfterSeconds(now.Add(90*time.Second), now); got != 90 {
		t.Fatalf("retryAfter = %d, want 90", got)
	}
	if got := retryAfterSeconds(now.Add(300*time.Millisecond), now); got != 1 {
		t.Fatalf("sub-second retryAfter = %d, want 1", got)
	}
	if got := retryAfterSeconds(now.Add(-time.Second), now); got != 1 {
		t.Fatalf("past reset retryAfter = %d, want 1", got)
	}
}

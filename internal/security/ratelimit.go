package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Category identifies an independent rate-limit budget.
type Category string

// Rate-limit categories. Each owns a static (window, max) pair supplied
// by configuration.
const (
	CategoryGlobal              Category = "global"
	CategoryLogin               Category = "login"
	CategoryBudgetValidation    Category = "budget_validation"
	CategoryTransactionApproval Category = "transaction_approval"
	CategoryUserManagement      Category = "user_management"
	CategoryRolePermission      Category = "role_permission"
	CategoryUpload              Category = "upload"
	CategoryReportGeneration    Category = "report_generation"
	CategoryDataExport          Category = "data_export"
	CategoryAdmin               Category = "admin"
	CategoryIP                  Category = "ip"
	CategoryUser                Category = "user"
)

// Rule is one category's fixed-window budget.
type Rule struct {
	Window time.Duration
	Max    int64
}

// ErrRateLimitExceeded is the expected denial of an over-budget request.
var ErrRateLimitExceeded = errors.New("security: limite de requêtes atteinte")

// Result reports the outcome of one rate-limit check.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetTime  time.Time
	RetryAfter int
}

// Limiter enforces independent fixed-window budgets per (identity,
// category). Once a window's count exceeds the budget every further
// request in that window is denied; the count keeps incrementing for
// observability only.
type Limiter struct {
	store  CounterStore
	rules  map[Category]Rule
	logger *slog.Logger
}

// NewLimiter builds a limiter over the given store and category table.
func NewLimiter(store CounterStore, rules map[Category]Rule, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, rules: rules, logger: logger}
}

// Rule returns the budget for a category, falling back to the global one.
func (l *Limiter) Rule(category Category) Rule {
	if rule, ok := l.rules[category]; ok {
		return rule
	}
	return l.rules[CategoryGlobal]
}

// Check spends one request from the (identity, category) budget. The
// window evaluation and the increment happen as one atomic store
// operation, so an aborted caller can never leave a partial increment.
func (l *Limiter) Check(ctx context.Context, identity string, category Category) (Result, error) {
	rule := l.Rule(category)
	if rule.Max <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}, nil
	}
	key := bucketKey(identity, category)
	count, windowStart, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		return Result{}, fmt.Errorf("security: rate check %s: %w", key, err)
	}
	reset := windowStart.Add(rule.Window)
	result := Result{
		Allowed:   count <= rule.Max,
		Remaining: max(0, rule.Max-count),
		ResetTime: reset,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(reset, time.Now())
	}
	return result, nil
}

// OverLimitCount reports how many live buckets are currently past their
// budget. Read-only; feeds the statistics aggregator.
func (l *Limiter) OverLimitCount(ctx context.Context) (int, error) {
	buckets, err := l.store.Buckets(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	over := 0
	for _, b := range buckets {
		if !b.ResetAt.After(now) {
			continue
		}
		category, ok := categoryOf(b.Key)
		if !ok {
			continue
		}
		if rule := l.Rule(category); rule.Max > 0 && b.Count > rule.Max {
			over++
		}
	}
	return over, nil
}

func bucketKey(identity string, category Category) string {
	return string(category) + ":" + identity
}

func categoryOf(key string) (Category, bool) {
	idx := strings.IndexByte(key, ':')
	if idx <= 0 {
		return "", false
	}
	return Category(key[:idx]), true
}

func retryAfterSeconds(reset, now time.Time) int {
	remaining := reset.Sub(now)
	if remaining <= 0 {
		return 1
	}
	return int((remaining + time.Second - 1) / time.Second)
}

package security

import (
	"context"
	"log/slog"
)

// LockoutCounter exposes the account-lockout store's only statistic the
// engine needs. The store itself belongs to the authentication layer.
type LockoutCounter interface {
	LockedCount(ctx context.Context) (int, error)
}

// Stats is a live snapshot of the engine's counters. All fields are
// non-negative; nothing is persisted.
type Stats struct {
	ActiveAlerts         int `json:"activeAlerts"`
	LockedAccounts       int `json:"lockedAccounts"`
	RateLimitViolations  int `json:"rateLimitViolations"`
	SuspiciousActivities int `json:"suspiciousActivities"`
}

// Aggregator computes Stats from the limiter, the detector and the
// lockout store without mutating any of them. Sources that fail are
// logged and reported as zero so a monitoring probe never errors out.
type Aggregator struct {
	limiter  *Limiter
	detector *Detector
	lockouts LockoutCounter
	logger   *slog.Logger
}

// NewAggregator wires the three read-only sources.
func NewAggregator(limiter *Limiter, detector *Detector, lockouts LockoutCounter, logger *slog.Logger) *Aggregator {
	return &Aggregator{limiter: limiter, detector: detector, lockouts: lockouts, logger: logger}
}

// Snapshot reads the current counters.
func (a *Aggregator) Snapshot(ctx context.Context) Stats {
	var stats Stats
	if a.limiter != nil {
		over, err := a.limiter.OverLimitCount(ctx)
		if err != nil {
			a.warn("rate limit stats", err)
		} else {
			stats.RateLimitViolations = over
		}
	}
	if a.detector != nil {
		stats.SuspiciousActivities = a.detector.FlaggedCount()
	}
	if a.lockouts != nil {
		locked, err := a.lockouts.LockedCount(ctx)
		if err != nil {
			a.warn("lockout stats", err)
		} else {
			stats.LockedAccounts = locked
		}
	}
	stats.ActiveAlerts = stats.RateLimitViolations + stats.SuspiciousActivities + stats.LockedAccounts
	return stats
}

func (a *Aggregator) warn(op string, err error) {
	if a.logger != nil {
		a.logger.Warn(op, slog.Any("error", err))
	}
}

package security

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Detector reasons; multiple may co-occur on one request.
const (
	ReasonSuspiciousUserAgent = "agent utilisateur suspect"
	ReasonSensitiveEndpoint   = "accès à un endpoint sensible"
	ReasonAbnormalVolume      = "volume de requêtes anormal"
)

// DetectorConfig is the externally supplied detection table.
type DetectorConfig struct {
	// UserAgentPatterns are regular expressions matching automation
	// tooling (curl, wget, scripted HTTP libraries, crawlers).
	UserAgentPatterns []string
	// SensitivePrefixes flag administrative and credential endpoints.
	SensitivePrefixes []string
	// VolumeThreshold is the per-user request count within VolumeWindow
	// above which traffic is flagged.
	VolumeThreshold int
	VolumeWindow    time.Duration
}

// Assessment is the detector's verdict for one request.
type Assessment struct {
	Suspicious bool
	Reasons    []string
}

type userWindow struct {
	count       int
	windowStart time.Time
}

// Detector scores requests against three independent heuristic signals.
// It never blocks a request; callers only annotate and record.
type Detector struct {
	patterns  []*regexp.Regexp
	prefixes  []string
	threshold int
	window    time.Duration

	mu       sync.Mutex
	activity map[int64]*userWindow
	now      func() time.Time
}

// NewDetector compiles the configured patterns. Invalid patterns are
// skipped rather than failing startup.
func NewDetector(cfg DetectorConfig) *Detector {
	patterns := make([]*regexp.Regexp, 0, len(cfg.UserAgentPatterns))
	for _, raw := range cfg.UserAgentPatterns {
		if re, err := regexp.Compile(raw); err == nil {
			patterns = append(patterns, re)
		}
	}
	return &Detector{
		patterns:  patterns,
		prefixes:  cfg.SensitivePrefixes,
		threshold: cfg.VolumeThreshold,
		window:    cfg.VolumeWindow,
		activity:  make(map[int64]*userWindow),
		now:       time.Now,
	}
}

// Analyze scores one request. Signals are additive: the verdict is
// suspicious as soon as any reason applies.
func (d *Detector) Analyze(userID int64, ip, userAgent, endpoint, method string) Assessment {
	var reasons []string
	for _, re := range d.patterns {
		if re.MatchString(userAgent) {
			reasons = append(reasons, ReasonSuspiciousUserAgent)
			break
		}
	}
	for _, prefix := range d.prefixes {
		if strings.HasPrefix(endpoint, prefix) {
			reasons = append(reasons, ReasonSensitiveEndpoint)
			break
		}
	}
	if userID != 0 && d.overVolume(userID) {
		reasons = append(reasons, ReasonAbnormalVolume)
	}
	return Assessment{Suspicious: len(reasons) > 0, Reasons: reasons}
}

// overVolume counts the request into the user's rolling window and
// reports whether the window is past the threshold. The request crossing
// the threshold and every later one in the same window are flagged.
func (d *Detector) overVolume(userID int64) bool {
	if d.threshold <= 0 || d.window <= 0 {
		return false
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.activity[userID]
	if !ok || !now.Before(w.windowStart.Add(d.window)) {
		d.activity[userID] = &userWindow{count: 1, windowStart: now}
		return false
	}
	w.count++
	return w.count > d.threshold
}

// FlaggedCount reports how many users are currently over the volume
// threshold. Read-only; feeds the statistics aggregator.
func (d *Detector) FlaggedCount() int {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	flagged := 0
	for _, w := range d.activity {
		if w.count > d.threshold && now.Before(w.windowStart.Add(d.window)) {
			flagged++
		}
	}
	return flagged
}

// Cleanup prunes expired per-user windows.
func (d *Detector) Cleanup(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	pruned := 0
	for userID, w := range d.activity {
		if now.After(w.windowStart.Add(d.window + sweepGrace)) {
			delete(d.activity, userID)
			pruned++
		}
	}
	return pruned
}

// Run prunes periodically until the context is cancelled.
func (d *Detector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.Cleanup(now)
		}
	}
}

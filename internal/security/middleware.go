package security

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/univia-admin/univia/internal/platform/httpx"
	"github.com/univia-admin/univia/internal/rbac"
)

// Observer counts enforcement outcomes for metrics.
type Observer interface {
	RateLimitDenied(category string)
	SuspiciousFlagged()
}

// Middleware runs the security pipeline (rate limiting, then
// suspicious-activity analysis) for every request, before and
// independently of the authorization pipeline. Expected denials (limit
// exceeded) short-circuit with 429; unexpected internal failures are
// logged and the request proceeds, preserving availability.
type Middleware struct {
	Limiter  *Limiter
	Detector *Detector
	Events   *Recorder
	Observer Observer
	Logger   *slog.Logger
}

// Enforce applies the given category's budget and the detector to the
// wrapped routes.
func (m *Middleware) Enforce(category Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, authenticated := rbac.PrincipalFromContext(r.Context())
			identity := identityFor(principal, authenticated, r)

			result, err := m.check(r.Context(), identity, category)
			switch {
			case err != nil:
				// Fail open: availability wins over a lost counter.
				m.logError("rate limit check", err, r)
			case !result.Allowed:
				m.denied(w, r, principal, category, result)
				return
			default:
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
			}

			if assessment := m.analyze(principal, r); assessment.Suspicious {
				w.Header().Set("X-Security-Warning", "activité surveillée")
				if m.Observer != nil {
					m.Observer.SuspiciousFlagged()
				}
				m.record(r, principal, EventSuspicious, assessment.Reasons)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check wraps the limiter so a panic inside it degrades to fail open.
func (m *Middleware) check(ctx context.Context, identity string, category Category) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Allowed: true}
			if m.Logger != nil {
				m.Logger.Error("rate limiter panic", slog.Any("panic", rec))
			}
		}
	}()
	if m.Limiter == nil {
		return Result{Allowed: true}, nil
	}
	return m.Limiter.Check(ctx, identity, category)
}

// analyze wraps the detector the same way; a detector failure never
// blocks or flags the request.
func (m *Middleware) analyze(principal rbac.Principal, r *http.Request) (assessment Assessment) {
	defer func() {
		if rec := recover(); rec != nil {
			assessment = Assessment{}
			if m.Logger != nil {
				m.Logger.Error("suspicious detector panic", slog.Any("panic", rec))
			}
		}
	}()
	if m.Detector == nil {
		return Assessment{}
	}
	return m.Detector.Analyze(principal.UserID, requestIP(r), r.UserAgent(), r.URL.Path, r.Method)
}

func (m *Middleware) denied(w http.ResponseWriter, r *http.Request, principal rbac.Principal, category Category, result Result) {
	if m.Observer != nil {
		m.Observer.RateLimitDenied(string(category))
	}
	if m.Logger != nil {
		m.Logger.Warn("limite de requêtes atteinte",
			slog.String("category", string(category)),
			slog.String("path", r.URL.Path),
			slog.Int64("user_id", principal.UserID),
		)
	}
	m.record(r, principal, EventRateLimit, []string{string(category)})
	httpx.TooManyRequests(w, "Limite de requêtes atteinte, réessayez plus tard", result.RetryAfter)
}

func (m *Middleware) record(r *http.Request, principal rbac.Principal, kind string, reasons []string) {
	if m.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()
	err := m.Events.Record(ctx, Event{
		Kind:      kind,
		UserID:    principal.UserID,
		TenantID:  principal.TenantID,
		IP:        requestIP(r),
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
		Method:    r.Method,
		Reasons:   reasons,
	})
	if err != nil {
		m.logError("record security event", err, r)
	}
}

func (m *Middleware) logError(op string, err error, r *http.Request) {
	if m.Logger != nil {
		m.Logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
}

func identityFor(principal rbac.Principal, authenticated bool, r *http.Request) string {
	if authenticated && principal.UserID != 0 {
		return "user:" + strconv.FormatInt(principal.UserID, 10)
	}
	return "ip:" + requestIP(r)
}

func requestIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

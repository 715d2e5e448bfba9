package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the security engine.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authzDenials     *prometheus.CounterVec
	rateLimitDenials *prometheus.CounterVec
	suspiciousTotal  prometheus.Counter
}

// NewMetrics initialises the registry and the engine's counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "univia_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "univia_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	authzDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "univia_authorization_denials_total",
		Help: "Authorization denials by pipeline stage.",
	}, []string{"stage"})
	rateLimitDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "univia_rate_limit_denials_total",
		Help: "Requests denied by the rate limiter, per category.",
	}, []string{"category"})
	suspicious := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "univia_suspicious_requests_total",
		Help: "Requests flagged by the suspicious-activity detector.",
	})
	registry.MustRegister(requests, duration, authzDenials, rateLimitDenials, suspicious)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		authzDenials:     authzDenials,
		rateLimitDenials: rateLimitDenials,
		suspiciousTotal:  suspicious,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthorizationDenied counts one pipeline denial.
func (m *Metrics) AuthorizationDenied(stage string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(stage).Inc()
}

// RateLimitDenied counts one 429.
func (m *Metrics) RateLimitDenied(category string) {
	if m == nil {
		return
	}
	m.rateLimitDenials.WithLabelValues(category).Inc()
}

// SuspiciousFlagged counts one flagged request.
func (m *Metrics) SuspiciousFlagged() {
	if m == nil {
		return
	}
	m.suspiciousTotal.Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/univia-admin/univia/internal/auth"
	"github.com/univia-admin/univia/internal/observability"
	"github.com/univia-admin/univia/internal/security"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Config   *Config
	Auth     auth.Middleware
	Security *security.Middleware
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the outer chain. The security pipeline sits in
// it unconditionally: rate limiting and suspicious-activity analysis run
// for every request, authenticated or not, before any authorization
// decision. Invalid bearer tokens are rejected only after that pipeline
// has run, so forged-token traffic is still counted and analyzed.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	ipLimit := RateRule{Max: 100, Window: 15 * time.Minute}
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		ipLimit = cfg.Config.RateIP
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(int(ipLimit.Max), ipLimit.Window, httprate.WithKeyFuncs(httprate.KeyByIP)),
		cfg.Auth.Principal,
	}
	if cfg.Security != nil {
		middlewares = append(middlewares, cfg.Security.Enforce(security.CategoryGlobal))
	}
	middlewares = append(middlewares, cfg.Auth.Reject)
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

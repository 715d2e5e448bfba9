package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/univia-admin/univia/internal/platform/httpx"
	"github.com/univia-admin/univia/internal/rbac"
)

// Middleware resolves the bearer token into a principal for downstream
// authorization. Requests without a token continue unauthenticated; the
// authorization pipeline rejects them where authentication is required.
// A present but invalid token is rejected, but the rejection is deferred
// to Reject so the security pipeline still counts and analyzes the
// request.
type Middleware struct {
	Codec  *TokenCodec
	Logger *slog.Logger
}

type contextKey int

const rejectionKey contextKey = iota

func markRejected(ctx context.Context) context.Context {
	return context.WithValue(ctx, rejectionKey, true)
}

// Principal parses the Authorization header. It never writes a response:
// malformed schemes and forged tokens are noted in the context and the
// request continues unauthenticated until Reject answers.
func (m Middleware) Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			next.ServeHTTP(w, r.WithContext(markRejected(r.Context())))
			return
		}
		principal, err := m.Codec.Verify(token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("jeton rejeté", slog.String("path", r.URL.Path))
			}
			next.ServeHTTP(w, r.WithContext(markRejected(r.Context())))
			return
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Reject answers 401 for requests whose credentials Principal refused.
// It sits after the security middleware in the stack, so rate limiting
// and suspicious-activity analysis apply to forged-token traffic too.
func (m Middleware) Reject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rejected, _ := r.Context().Value(rejectionKey).(bool); rejected {
			httpx.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package rbac

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/univia-admin/univia/internal/platform/httpx"
)

// RouteGuard is the declarative protection attached to one route at
// registration time.
type RouteGuard struct {
	Descriptor       Descriptor
	Conditions       []Condition
	AllowCrossTenant bool
	// TenantField names the request field carrying the target tenant,
	// e.g. "params.etablissement". Empty means the operation stays inside
	// the caller's tenant.
	TenantField string
}

// DenyObserver counts refused authorizations, keyed by pipeline stage.
type DenyObserver interface {
	AuthorizationDenied(stage string)
}

// Middleware adapts the authorization pipeline to chi routes.
type Middleware struct {
	Permissions *PermissionEvaluator
	Tenancy     TenantGuard
	Logger      *slog.Logger
	Observer    DenyObserver
}

// Require runs the authorization pipeline before the wrapped handler:
// authentication, permission descriptor, tenant isolation, then declared
// conditions, stopping at the first denial.
func (m Middleware) Require(guard RouteGuard) func(http.Handler) http.Handler {
	pipeline := NewPipeline(
		AuthenticationStage(),
		PermissionStage(m.Permissions, guard.Descriptor),
		TenantStage(m.Tenancy, tenantResolver(guard.TenantField), guard.AllowCrossTenant),
		ConditionStage(guard.Conditions),
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := m.buildRequest(r)
			if err != nil {
				// Authorization errors are never converted into a pass.
				if m.Logger != nil {
					m.Logger.Error("authorization request build", slog.Any("error", err))
				}
				httpx.Internal(w)
				return
			}
			decision := pipeline.Evaluate(req)
			if !decision.Allow {
				m.deny(w, r, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, decision Decision) {
	stage := stageName(decision.Err)
	if m.Observer != nil {
		m.Observer.AuthorizationDenied(stage)
	}
	if m.Logger != nil {
		m.Logger.Warn("accès refusé",
			slog.String("path", r.URL.Path),
			slog.String("stage", stage),
			slog.Any("error", decision.Err),
		)
	}
	switch decision.Status {
	case http.StatusUnauthorized:
		httpx.Unauthorized(w)
	case http.StatusForbidden:
		var perr *PermissionError
		if errors.As(decision.Err, &perr) {
			httpx.Forbidden(w, decision.Message, perr.Required)
			return
		}
		httpx.Forbidden(w, decision.Message)
	default:
		httpx.Internal(w)
	}
}

func (m Middleware) buildRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		UserAgent: r.UserAgent(),
		Query:     queryMap(r),
		Params:    routeParams(r),
	}
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		req.Authenticated = true
		req.Context = NewAccessContext(principal.UserID, principal.TenantID, principal.Role, principal.Permissions, remoteIP(r))
	} else {
		req.Context = AccessContext{SourceIP: remoteIP(r)}
	}
	body, err := bodyMap(r)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func tenantResolver(field string) func(*Request) string {
	if field == "" {
		return nil
	}
	return func(req *Request) string {
		value, ok := resolveField(field, req)
		if !ok || value == nil {
			return ""
		}
		s, _ := value.(string)
		return s
	}
}

func stageName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication"
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	case errors.Is(err, ErrCrossTenantDenied):
		return "tenant"
	case errors.Is(err, ErrConditionNotMet):
		return "condition"
	default:
		return "internal"
	}
}

func queryMap(r *http.Request) map[string]any {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

func routeParams(r *http.Request) map[string]any {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	out := make(map[string]any, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		out[key] = rctx.URLParams.Values[i]
	}
	return out
}

// bodyMap decodes a JSON body for condition evaluation and restores it so
// the business handler can read it again.
func bodyMap(r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		// Non-object bodies carry no addressable fields.
		return nil, nil
	}
	return out, nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package rbac

import "context"

// Principal is the authenticated identity handed over by the
// authentication layer. The pipeline turns it into an AccessContext.
type Principal struct {
	UserID      int64
	TenantID    string
	Role        string
	Permissions []string
}

type contextKey struct{}

// ContextWithPrincipal stores the principal for the rest of the request.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal, if one was authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/univia-admin/univia/internal/auth"
	"github.com/univia-admin/univia/internal/observability"
	"github.com/univia-admin/univia/internal/rbac"
	"github.com/univia-admin/univia/internal/secrets"
	"github.com/univia-admin/univia/internal/security"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Auth         auth.Middleware
	LoginHandler *auth.Handler
	RBAC         rbac.Middleware
	Security     *security.Middleware
	Stats        *security.Aggregator
	Encryption   *secrets.Service
	Hierarchy    *rbac.Hierarchy
	Roles        []string
	Metrics      *observability.Metrics
}

// NewRouter mounts the guarded API surface. Each protected route declares
// its permission descriptor, conditions, tenant flag and rate category at
// registration time; nothing is attached through runtime introspection.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:   params.Config,
		Auth:     params.Auth,
		Security: params.Security,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	h := handlers{
		logger:    params.Logger,
		stats:     params.Stats,
		crypto:    params.Encryption,
		hierarchy: params.Hierarchy,
		roles:     params.Roles,
	}

	r.Route("/api", func(r chi.Router) {
		r.With(params.Security.Enforce(security.CategoryLogin)).
			Post("/auth/login", params.LoginHandler.Login)

		r.With(
			params.Security.Enforce(security.CategoryUser),
			params.RBAC.Require(rbac.RouteGuard{Descriptor: rbac.Require("budgets", "read")}),
		).Get("/budgets", h.ok)

		r.With(
			params.Security.Enforce(security.CategoryBudgetValidation),
			params.RBAC.Require(rbac.RouteGuard{
				Descriptor: rbac.All(rbac.Require("budgets", "read"), rbac.Require("budgets", "validate")),
				Conditions: []rbac.Condition{
					{Field: "body.montant", Operator: rbac.OpGt, Value: 0, Message: "Le montant doit être positif"},
				},
			}),
		).Post("/budgets/{id}/validation", h.ok)

		r.With(
			params.Security.Enforce(security.CategoryTransactionApproval),
			params.RBAC.Require(rbac.RouteGuard{
				Descriptor: rbac.Any(rbac.Require("budgets", "approve"), rbac.Require("finances", "approve")),
			}),
		).Post("/transactions/{id}/approbation", h.ok)

		// Housing stock is readable across tenants by the central ministry.
		r.With(
			params.Security.Enforce(security.CategoryUser),
			params.RBAC.Require(rbac.RouteGuard{
				Descriptor:       rbac.Require("logements", "read"),
				AllowCrossTenant: true,
				TenantField:      "query.etablissement",
			}),
		).Get("/logements", h.ok)

		r.With(
			params.Security.Enforce(security.CategoryUpload),
			params.RBAC.Require(rbac.RouteGuard{Descriptor: rbac.Require("etudiants", "update")}),
		).Post("/etudiants/{id}/coordonnees-bancaires", h.bankDetails)

		r.With(
			params.Security.Enforce(security.CategoryDataExport),
			params.RBAC.Require(rbac.RouteGuard{Descriptor: rbac.Require("exports", "create")}),
		).Post("/exports", h.ok)

		r.With(
			params.Security.Enforce(security.CategoryRolePermission),
			params.RBAC.Require(rbac.RouteGuard{Descriptor: rbac.Require("roles", "read")}),
		).Get("/admin/roles", h.manageableRoles)

		r.With(
			params.Security.Enforce(security.CategoryAdmin),
			params.RBAC.Require(rbac.RouteGuard{Descriptor: rbac.Require("admin", "read")}),
		).Get("/admin/securite/stats", h.securityStats)
	})

	return r
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univia-admin/univia/internal/auth"
	"github.com/univia-admin/univia/internal/observability"
	"github.com/univia-admin/univia/internal/rbac"
	"github.com/univia-admin/univia/internal/secrets"
	"github.com/univia-admin/univia/internal/security"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func testRouter(t *testing.T) (http.Handler, *auth.TokenCodec) {
	t.Helper()
	validEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	metrics := observability.NewMetrics()
	hierarchy := rbac.NewHierarchy(cfg.HierarchyConfig())
	limiter := security.NewLimiter(security.NewMemoryStore(), cfg.RateRules(), nil)
	detector := security.NewDetector(cfg.DetectorConfig())
	lockouts := auth.NewLockoutStore(redisClient, cfg.LockoutThreshold, cfg.LockoutTTL)
	codec := auth.NewTokenCodec(cfg.TokenSecret)
	encryption, err := secrets.NewService(testEncryptionKey)
	require.NoError(t, err)

	roles := make([]string, 0, len(cfg.RoleLevels))
	for name := range cfg.RoleLevels {
		roles = append(roles, name)
	}

	router := NewRouter(RouterParams{
		Config: cfg,
		Auth:   auth.Middleware{Codec: codec},
		LoginHandler: auth.NewHandler(nil, staticVerifier{}, lockouts, codec, cfg.TokenTTL),
		RBAC: rbac.Middleware{
			Permissions: rbac.NewPermissionEvaluator(nil, rbac.PermissionEvaluatorConfig{}),
			Tenancy:     rbac.TenantGuard{CentralTenant: cfg.CentralTenant},
			Observer:    metrics,
		},
		Security:   &security.Middleware{Limiter: limiter, Detector: detector, Observer: metrics},
		Stats:      security.NewAggregator(limiter, detector, lockouts, nil),
		Encryption: encryption,
		Hierarchy:  hierarchy,
		Roles:      roles,
		Metrics:    metrics,
	})
	return router, codec
}

type staticVerifier struct{}

func (staticVerifier) Verify(_ context.Context, login, password string) (rbac.Principal, error) {
	if login == "directeur" && password == "valide" {
		return rbac.Principal{UserID: 1, TenantID: "crous-paris", Role: "Directeur", Permissions: []string{"budgets:*", "admin:read", "roles:read", "etudiants:update"}}, nil
	}
	return rbac.Principal{}, auth.ErrInvalidCredentials
}

func bearer(t *testing.T, codec *auth.TokenCodec, p rbac.Principal) string {
	t.Helper()
	token, _, err := codec.Sign(p, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterHealthz(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterGuardedRouteFullPipeline(t *testing.T) {
	router, codec := testRouter(t)
	principal := rbac.Principal{UserID: 4, TenantID: "crous-paris", Role: "Directeur", Permissions: []string{"budgets:read", "budgets:validate"}}

	// No token: 401 from the authorization pipeline.
	req := httptest.NewRequest(http.MethodPost, "/api/budgets/3/validation", strings.NewReader(`{"montant":10}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token but negative amount: the condition denies.
	req = httptest.NewRequest(http.MethodPost, "/api/budgets/3/validation", strings.NewReader(`{"montant":-1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, codec, principal))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Le montant doit être positif", body["message"])

	// Everything in order: 200.
	req = httptest.NewRequest(http.MethodPost, "/api/budgets/3/validation", strings.NewReader(`{"montant":1500}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, codec, principal))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterLoginFlow(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"identifiant":"directeur","motDePasse":"valide"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	// The issued token opens a guarded route.
	req = httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterManageableRoles(t *testing.T) {
	router, codec := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/roles", nil)
	req.Header.Set("Authorization", bearer(t, codec, rbac.Principal{
		UserID: 2, TenantID: "crous-paris", Role: "Gestionnaire Budget", Permissions: []string{"roles:read"},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Utilisateur"}, body.Roles)
}

func TestRouterSecurityStats(t *testing.T) {
	router, codec := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/securite/stats", nil)
	req.Header.Set("Authorization", bearer(t, codec, rbac.Principal{
		UserID: 1, TenantID: "ministere", Role: "Ministre", Permissions: []string{"admin:read"},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats security.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.GreaterOrEqual(t, stats.ActiveAlerts, 0)
}

func TestRouterBankDetailsEncrypts(t *testing.T) {
	router, codec := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/etudiants/12/coordonnees-bancaires", strings.NewReader(`{"iban":"FR7630001007941234567890185","bic":"BDFEFRPP"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, codec, rbac.Principal{
		UserID: 3, TenantID: "crous-paris", Role: "Agent", Permissions: []string{"etudiants:update"},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chiffre bool   `json:"chiffre"`
		IV      string `json:"iv"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Chiffre)
	assert.Len(t, body.IV, 24)
}

func TestRouterCrossTenantHousing(t *testing.T) {
	router, codec := testRouter(t)

	// A regular tenant cannot read another tenant's stock.
	req := httptest.NewRequest(http.MethodGet, "/api/logements?etablissement=crous-lyon", nil)
	req.Header.Set("Authorization", bearer(t, codec, rbac.Principal{
		UserID: 5, TenantID: "crous-paris", Role: "Gestionnaire Logement", Permissions: []string{"logements:read"},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The central tenant can.
	req = httptest.NewRequest(http.MethodGet, "/api/logements?etablissement=crous-lyon", nil)
	req.Header.Set("Authorization", bearer(t, codec, rbac.Principal{
		UserID: 6, TenantID: "ministere", Role: "Ministre", Permissions: []string{"logements:read"},
	}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

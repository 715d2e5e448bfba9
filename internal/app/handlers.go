package app

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"sort"

	"github.com/univia-admin/univia/internal/platform/httpx"
	"github.com/univia-admin/univia/internal/rbac"
	"github.com/univia-admin/univia/internal/secrets"
	"github.com/univia-admin/univia/internal/security"
)

// handlers carries the engine-owned endpoints. The business CRUD modules
// live in their own services; the ok stub stands in for them here so the
// router exercises every guard.
type handlers struct {
	logger    *slog.Logger
	stats     *security.Aggregator
	crypto    *secrets.Service
	hierarchy *rbac.Hierarchy
	roles     []string
}

func (h handlers) ok(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// manageableRoles lists the roles the caller may administer, per the
// configured hierarchy.
func (h handlers) manageableRoles(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w)
		return
	}
	manageable := h.hierarchy.ManageableRoles(principal.Role, h.roles)
	sort.Strings(manageable)
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": manageable})
}

// securityStats serves the live engine counters.
func (h handlers) securityStats(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.stats.Snapshot(r.Context()))
}

type bankDetailsRequest struct {
	IBAN string `json:"iban"`
	BIC  string `json:"bic"`
}

// bankDetails encrypts the submitted bank coordinates before they are
// handed to the (out-of-scope) student record service.
func (h handlers) bankDetails(w http.ResponseWriter, r *http.Request) {
	var req bankDetailsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.IBAN == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	payload, err := h.crypto.Encrypt([]byte(req.IBAN), "")
	if err != nil {
		// Encryption never fails open.
		if h.logger != nil {
			h.logger.Error("chiffrement iban", slog.Any("error", err))
		}
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"chiffre": true,
		"iv":      hex.EncodeToString(payload.IV),
	})
}

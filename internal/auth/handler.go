package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/univia-admin/univia/internal/platform/httpx"
	"github.com/univia-admin/univia/internal/rbac"
)

// ErrInvalidCredentials is returned by CredentialVerifier on bad logins.
var ErrInvalidCredentials = errors.New("auth: identifiants invalides")

// CredentialVerifier is the out-of-scope identity collaborator: given a
// login and password it returns the principal's grants.
type CredentialVerifier interface {
	Verify(ctx context.Context, login, password string) (rbac.Principal, error)
}

// Handler exposes the login endpoint: lockout check, credential
// verification, token issuance.
type Handler struct {
	logger   *slog.Logger
	verifier CredentialVerifier
	lockouts *LockoutStore
	codec    *TokenCodec
	tokenTTL time.Duration
}

// NewHandler wires the login endpoint.
func NewHandler(logger *slog.Logger, verifier CredentialVerifier, lockouts *LockoutStore, codec *TokenCodec, tokenTTL time.Duration) *Handler {
	return &Handler{logger: logger, verifier: verifier, lockouts: lockouts, codec: codec, tokenTTL: tokenTTL}
}

type loginRequest struct {
	Login    string `json:"identifiant"`
	Password string `json:"motDePasse"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Login == "" || req.Password == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	locked, err := h.lockouts.Locked(r.Context(), req.Login)
	if err != nil {
		h.warn("lockout check", err)
	} else if locked {
		httpx.Locked(w, "Trop de tentatives, compte temporairement verrouillé")
		return
	}

	principal, err := h.verifier.Verify(r.Context(), req.Login, req.Password)
	if err != nil {
		if _, lerr := h.lockouts.RecordFailure(r.Context(), req.Login); lerr != nil {
			h.warn("lockout record", lerr)
		}
		httpx.JSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "Identifiants invalides"})
		return
	}

	if err := h.lockouts.Reset(r.Context(), req.Login); err != nil {
		h.warn("lockout reset", err)
	}

	token, expires, err := h.codec.Sign(principal, h.tokenTTL)
	if err != nil {
		h.warn("token sign", err)
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (h *Handler) warn(op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
}

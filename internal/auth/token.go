// Package auth is the thin authentication collaborator of the security
// engine: bearer-token verification, the principal middleware and the
// failed-login lockout store. Token issuance by a full identity provider
// is out of scope; the HMAC signer here covers first-party sessions.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/univia-admin/univia/internal/rbac"
)

// ErrInvalidToken covers malformed, forged and expired tokens alike.
var ErrInvalidToken = errors.New("auth: jeton invalide")

type tokenClaims struct {
	UserID      int64    `json:"uid"`
	TenantID    string   `json:"tid"`
	Role        string   `json:"role"`
	Permissions []string `json:"perms"`
	ExpiresAt   int64    `json:"exp"`
}

// TokenCodec signs and verifies principal tokens with HMAC-SHA256.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec builds a codec over the configured secret.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), now: time.Now}
}

// Sign serializes the principal with an expiry and appends its MAC.
func (c *TokenCodec) Sign(p rbac.Principal, ttl time.Duration) (string, time.Time, error) {
	expires := c.now().Add(ttl)
	payload, err := json.Marshal(tokenClaims{
		UserID:      p.UserID,
		TenantID:    p.TenantID,
		Role:        p.Role,
		Permissions: p.Permissions,
		ExpiresAt:   expires.Unix(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.mac(encoded), expires, nil
}

// Verify checks the MAC and expiry and returns the embedded principal.
func (c *TokenCodec) Verify(token string) (rbac.Principal, error) {
	encoded, mac, found := strings.Cut(token, ".")
	if !found {
		return rbac.Principal{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(mac), []byte(c.mac(encoded))) {
		return rbac.Principal{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return rbac.Principal{}, ErrInvalidToken
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return rbac.Principal{}, ErrInvalidToken
	}
	if c.now().Unix() >= claims.ExpiresAt {
		return rbac.Principal{}, ErrInvalidToken
	}
	return rbac.Principal{
		UserID:      claims.UserID,
		TenantID:    claims.TenantID,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

func (c *TokenCodec) mac(encoded string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/univia-admin/univia/internal/rbac"
)

// DirectoryVerifier checks credentials against the user directory and
// returns the principal's grants. The directory schema belongs to the
// user-management module; only this read touches it.
type DirectoryVerifier struct {
	pool *pgxpool.Pool
}

// NewDirectoryVerifier wires the verifier to the directory pool.
func NewDirectoryVerifier(pool *pgxpool.Pool) *DirectoryVerifier {
	return &DirectoryVerifier{pool: pool}
}

// Verify implements CredentialVerifier.
func (v *DirectoryVerifier) Verify(ctx context.Context, login, password string) (rbac.Principal, error) {
	const query = `SELECT u.id, u.tenant_id, u.role, u.password_hash, COALESCE(u.permissions, '{}') FROM users u WHERE u.login = $1 AND u.is_active`
	var (
		principal rbac.Principal
		hash      string
	)
	err := v.pool.QueryRow(ctx, query, login).Scan(&principal.UserID, &principal.TenantID, &principal.Role, &hash, &principal.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Principal{}, ErrInvalidCredentials
		}
		return rbac.Principal{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return rbac.Principal{}, ErrInvalidCredentials
	}
	return principal, nil
}

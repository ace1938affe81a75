package ports

import (
	"context"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// Verification is the result of a successful credential exchange.
type Verification struct {
	Username    string
	DisplayName string
	Email       string
	RoleClaims  []domain.RoleClaim
	// FirstLogin is set when the backend has never recorded a login for the
	// account; the password must be rotated before anything else.
	FirstLogin bool
}

// UserRecord is the identity backend's view of one account.
type UserRecord struct {
	Username   string
	FullName   string
	Email      string
	RoleClaims []domain.RoleClaim
	FirstLogin bool
}

// CredentialVerifier exchanges a username/password pair with the identity backend.
type CredentialVerifier interface {
	// Verify returns domain.ErrInvalidCredentials or domain.ErrBackendUnavailable on failure.
	Verify(ctx context.Context, username, password string) (*Verification, error)
}

// IdentityClient is bound to one backend session (its cookie jar). Calls made
// on behalf of an authenticated caller return domain.ErrSessionExpired when the
// backend answers unauthorized.
type IdentityClient interface {
	CredentialVerifier

	// WhoAmI returns the logged-in username, or "" for a guest.
	WhoAmI(ctx context.Context) (string, error)
	User(ctx context.Context, username string) (*UserRecord, error)
	UpdatePassword(ctx context.Context, oldPassword, newPassword string) error
	Logout(ctx context.Context) error

	// Artifact exports the opaque backend session so it can be restored later.
	Artifact() string
}

// IdentityClientFactory builds clients, optionally restoring a previously
// exported artifact.
type IdentityClientFactory interface {
	NewClient(artifact string) IdentityClient
}

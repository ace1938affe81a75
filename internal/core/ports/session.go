package ports

import (
	"context"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// LoginResult tells the caller where a successful login landed.
type LoginResult struct {
	RequiresPasswordReset bool
}

// Session is one client's live session state machine.
type Session interface {
	ID() string
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Revalidate(ctx context.Context) (domain.Snapshot, error)
	CompletePasswordReset(ctx context.Context, newPassword string) error
	// SwitchRole never fails; selecting a role that is not offered is a no-op.
	SwitchRole(ctx context.Context, role domain.Role) domain.Snapshot
	// Logout always succeeds locally.
	Logout(ctx context.Context)
	// Expire drops local state after the backend rejected the session.
	Expire(ctx context.Context)
	Snapshot() domain.Snapshot
}

// SessionManager owns the live sessions, one per client.
type SessionManager interface {
	Create(ctx context.Context) Session
	// Open returns domain.ErrNotFound for an unknown or anonymous session id.
	Open(ctx context.Context, sessionID string) (Session, error)
}

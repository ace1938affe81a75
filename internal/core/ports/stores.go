package ports

import (
	"context"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// RoleStore is the durable record of the last role each username selected.
// Get returns domain.ErrNotFound when nothing is stored.
type RoleStore interface {
	Get(ctx context.Context, username string) (domain.Role, error)
	Set(ctx context.Context, username string, role domain.Role) error
	Clear(ctx context.Context, username string) error
}

// SnapshotStore keeps the last known snapshot of each session for the route
// guard and for rehydrating sessions. Get returns domain.ErrNotFound when absent.
type SnapshotStore interface {
	Get(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Set(ctx context.Context, snap domain.Snapshot) error
	Clear(ctx context.Context, sessionID string) error
}

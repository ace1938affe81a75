package ports

import (
	"context"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// SessionEventRepository persists the session audit trail.
type SessionEventRepository interface {
	InsertEvent(ctx context.Context, event *domain.SessionEvent) error
}

// SessionEventPublisher hands events off for asynchronous persistence.
// Publish must not block the caller's transition.
type SessionEventPublisher interface {
	Publish(event domain.SessionEvent)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.SessionEvent) {}

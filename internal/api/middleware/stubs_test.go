package middleware

import (
	"context"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

type stubSession struct {
	id      string
	snap    domain.Snapshot
	expired bool
}

func (s *stubSession) ID() string { return s.id }
func (s *stubSession) Login(context.Context, string, string) (ports.LoginResult, error) {
	return ports.LoginResult{}, nil
}
func (s *stubSession) Revalidate(context.Context) (domain.Snapshot, error) { return s.snap, nil }
func (s *stubSession) CompletePasswordReset(context.Context, string) error { return nil }
func (s *stubSession) SwitchRole(context.Context, domain.Role) domain.Snapshot {
	return s.snap
}
func (s *stubSession) Logout(context.Context) {}
func (s *stubSession) Expire(context.Context) { s.expired = true }
func (s *stubSession) Snapshot() domain.Snapshot { return s.snap }

type stubSessionManager struct {
	createFn func(ctx context.Context) ports.Session
	openFn   func(ctx context.Context, id string) (ports.Session, error)
}

func (m *stubSessionManager) Create(ctx context.Context) ports.Session { return m.createFn(ctx) }
func (m *stubSessionManager) Open(ctx context.Context, id string) (ports.Session, error) {
	return m.openFn(ctx, id)
}

type stubSnapshotStore struct {
	snaps map[string]domain.Snapshot
}

func (s *stubSnapshotStore) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	snap, ok := s.snaps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}
func (s *stubSnapshotStore) Set(context.Context, domain.Snapshot) error { return nil }
func (s *stubSnapshotStore) Clear(context.Context, string) error { return nil }

type stubRoleStore struct {
	roles map[string]domain.Role
}

func (s *stubRoleStore) Get(_ context.Context, username string) (domain.Role, error) {
	r, ok := s.roles[username]
	if !ok {
		return "", domain.ErrNotFound
	}
	return r, nil
}
func (s *stubRoleStore) Set(context.Context, string, domain.Role) error { return nil }
func (s *stubRoleStore) Clear(context.Context, string) error { return nil }

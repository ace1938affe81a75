// Package memory provides process-local stores for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/deskworks/dashboard/internal/core/domain"
)

// RoleStore is an in-memory ports.RoleStore.
type RoleStore struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

func NewRoleStore() *RoleStore {
	return &RoleStore{roles: make(map[string]domain.Role)}
}

func (s *RoleStore) Get(_ context.Context, username string) (domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[username]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

func (s *RoleStore) Set(_ context.Context, username string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[username] = role
	return nil
}

func (s *RoleStore) Clear(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, username)
	return nil
}

type snapshotEntry struct {
	snap      domain.Snapshot
	expiresAt time.Time
}

// SnapshotStore is an in-memory ports.SnapshotStore. Entries expire ttl after
// their last write; a zero ttl keeps them forever.
type SnapshotStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	snaps map[string]snapshotEntry
}

func NewSnapshotStore(ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{ttl: ttl, now: time.Now, snaps: make(map[string]snapshotEntry)}
}

func (s *SnapshotStore) Get(_ context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.snaps[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.snaps, sessionID)
		return nil, domain.ErrNotFound
	}
	snap := e.snap
	snap.AvailableRoles = append([]domain.Role{}, e.snap.AvailableRoles...)
	return &snap, nil
}

func (s *SnapshotStore) Set(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := snapshotEntry{snap: snap}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.snaps[snap.SessionID] = e
	return nil
}

func (s *SnapshotStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}

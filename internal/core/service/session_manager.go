package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deskworks/dashboard/internal/core/domain"
	"github.com/deskworks/dashboard/internal/core/ports"
)

const defaultSessionCacheSize = 4096

// SessionManager keeps live sessions in a bounded LRU cache. Evicted or
// never-seen sessions are rehydrated from the snapshot store.
type SessionManager struct {
	deps  SessionDeps
	cache *lru.Cache[string, *Session]
	// mu serialises rehydration so two requests for the same id share one Session.
	mu sync.Mutex
}

func NewSessionManager(deps SessionDeps, size int) (*SessionManager, error) {
	if size <= 0 {
		size = defaultSessionCacheSize
	}
	cache, err := lru.New[string, *Session](size)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &SessionManager{deps: deps.withDefaults(), cache: cache}, nil
}

// Create starts a new anonymous session with a fresh id.
func (m *SessionManager) Create(_ context.Context) ports.Session {
	s := NewSession(uuid.NewString(), m.deps)
	m.cache.Add(s.ID(), s)
	return s
}

// Open returns the live session for id, restoring it from its snapshot when it
// is not cached.
func (m *SessionManager) Open(ctx context.Context, sessionID string) (ports.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrNotFound
	}
	if s, ok := m.cache.Get(sessionID); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache.Get(sessionID); ok {
		return s, nil
	}

	snap, err := m.deps.Snapshots.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	snap.SessionID = sessionID

	s := RestoreSession(*snap, m.deps)
	m.cache.Add(sessionID, s)
	return s, nil
}

// Len reports the number of cached sessions.
func (m *SessionManager) Len() int {
	return m.cache.Len()
}

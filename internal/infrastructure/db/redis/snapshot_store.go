package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskworks/dashboard/internal/core/domain"
)

const snapshotPrefix = "dashboard:snapshot:"

// SnapshotStore keeps the latest session snapshot as a JSON blob that expires
// after ttl of inactivity.
// Key format: dashboard:snapshot:<session-id>
type SnapshotStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewSnapshotStore(client redis.UniversalClient, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Get(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	if sessionID == "" {
		return nil, domain.ErrNotFound
	}
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStore) Set(ctx context.Context, snap domain.Snapshot) error {
	if snap.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SnapshotStore) key(sessionID string) string {
	return snapshotPrefix + sessionID
}

package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/deskworks/dashboard/internal/core/domain"
)

const rolePrefix = "dashboard:role:"

// RoleStore keeps the last selected role per username as a plain string.
// Key format: dashboard:role:<username>
type RoleStore struct {
	client redis.UniversalClient
}

func NewRoleStore(client redis.UniversalClient) *RoleStore {
	return &RoleStore{client: client}
}

func (s *RoleStore) Get(ctx context.Context, username string) (domain.Role, error) {
	if username == "" {
		return "", domain.ErrNotFound
	}
	v, err := s.client.Get(ctx, s.key(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis get role: %w", err)
	}
	return domain.Role(v), nil
}

// Set overwrites the stored role; the last write wins.
func (s *RoleStore) Set(ctx context.Context, username string, role domain.Role) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if err := s.client.Set(ctx, s.key(username), string(role), 0).Err(); err != nil {
		return fmt.Errorf("redis set role: %w", err)
	}
	return nil
}

func (s *RoleStore) Clear(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("redis clear role: %w", err)
	}
	return nil
}

func (s *RoleStore) key(username string) string {
	return rolePrefix + username
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deskworks/dashboard/internal/core/domain"
)

const roleSelectionsCollection = "role_selections"

// RoleStore keeps one role selection document per username.
type RoleStore struct {
	coll *mongo.Collection
}

func NewRoleStore(db *mongo.Database) *RoleStore {
	return &RoleStore{coll: db.Collection(roleSelectionsCollection)}
}

type mongoRoleSelection struct {
	Username  string `bson:"username"`
	Role      string `bson:"role"`
	UpdatedAt int64  `bson:"updated_at"`
}

func (r *RoleStore) Get(ctx context.Context, username string) (domain.Role, error) {
	var doc mongoRoleSelection
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("find role selection: %w", err)
	}
	return domain.Role(doc.Role), nil
}

// Set upserts the selection; the last write wins.
func (r *RoleStore) Set(ctx context.Context, username string, role domain.Role) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	update := bson.M{"$set": mongoRoleSelection{
		Username:  username,
		Role:      string(role),
		UpdatedAt: time.Now().Unix(),
	}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"username": username}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert role selection: %w", err)
	}
	return nil
}

func (r *RoleStore) Clear(ctx context.Context, username string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"username": username}); err != nil {
		return fmt.Errorf("delete role selection: %w", err)
	}
	return nil
}

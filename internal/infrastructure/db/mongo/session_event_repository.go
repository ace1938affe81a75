package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deskworks/dashboard/internal/core/domain"
)

const sessionEventsCollection = "session_events"

// SessionEventRepository persists the session audit trail.
type SessionEventRepository struct {
	coll *mongo.Collection
}

func NewSessionEventRepository(db *mongo.Database) *SessionEventRepository {
	return &SessionEventRepository{coll: db.Collection(sessionEventsCollection)}
}

type mongoSessionEvent struct {
	ID          string    `bson:"_id"`
	SessionID   string    `bson:"session_id"`
	Username    string    `bson:"username,omitempty"`
	Kind        string    `bson:"kind"`
	State       string    `bson:"state"`
	Role        string    `bson:"role,omitempty"`
	Error       string    `bson:"error,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// InsertEvent stores one event. Re-delivering an event with the same ID is a no-op.
func (r *SessionEventRepository) InsertEvent(ctx context.Context, event *domain.SessionEvent) error {
	doc := mongoSessionEvent{
		ID:          event.ID,
		SessionID:   event.SessionID,
		Username:    event.Username,
		Kind:        string(event.Kind),
		State:       string(event.State),
		Role:        string(event.Role),
		Error:       event.Error,
		Timestamp:   event.Timestamp.UTC(),
		ProcessedAt: time.Now().UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// ListByUsername returns the most recent events for username, newest first.
func (r *SessionEventRepository) ListByUsername(ctx context.Context, username string, limit int64) ([]domain.SessionEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("find session events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoSessionEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode session events: %w", err)
	}

	events := make([]domain.SessionEvent, 0, len(docs))
	for _, d := range docs {
		events = append(events, domain.SessionEvent{
			ID:        d.ID,
			SessionID: d.SessionID,
			Username:  d.Username,
			Kind:      domain.SessionEventKind(d.Kind),
			State:     domain.SessionState(d.State),
			Role:      domain.Role(d.Role),
			Error:     d.Error,
			Timestamp: d.Timestamp,
		})
	}
	return events, nil
}

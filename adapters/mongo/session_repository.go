package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/wajah/domain/entities"
)

// endedSessionTTL is how long ended session records are kept, in seconds
const endedSessionTTL = 30 * 24 * 60 * 60

// SessionRepository keeps one document per session in "sessions"
type SessionRepository struct {
	collection *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{collection: db.Collection("sessions")}
}

// EnsureIndexes creates the per-device lookup index and the expiry index
// for ended sessions
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "ended_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(endedSessionTTL),
		},
	})
	if err != nil {
		return fmt.Errorf("session indexes: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("create session: nil session")
	}
	if err := session.Validate(); err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create session %s: already exists", session.ID)
		}
		return fmt.Errorf("create session %s: %w", session.ID, err)
	}
	return nil
}

// Update writes the mutable lifecycle fields of an existing record
func (r *SessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("update session: missing ID")
	}

	set := bson.M{
		"state":          session.State,
		"last_active_at": session.LastActiveAt,
	}
	if session.ConnectedAt != nil {
		set["connected_at"] = session.ConnectedAt
	}
	if session.EndedAt != nil {
		set["ended_at"] = session.EndedAt
		set["end_reason"] = session.EndReason
	}

	result, err := r.collection.UpdateByID(ctx, session.ID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update session %s: %w", session.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update session %s: not found", session.ID)
	}
	return nil
}

// GetLastByDeviceID returns the newest record of the device, or nil when it
// never had one
func (r *SessionRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error) {
	if deviceID == "" {
		return nil, errors.New("last session: empty device ID")
	}

	cursor, err := r.collection.Find(ctx,
		bson.M{"device_id": deviceID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("last session of %s: %w", deviceID, err)
	}

	var sessions []entities.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("last session of %s: %w", deviceID, err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

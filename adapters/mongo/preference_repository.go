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

// preferenceDocument is one document per device in "preferences"
type preferenceDocument struct {
	DeviceID      string                     `bson:"_id"`
	Expressions   entities.CustomExpressions `bson:"expressions,omitempty"`
	VoiceSettings *entities.VoiceSettings    `bson:"voice_settings,omitempty"`
}

// PreferenceRepository implements repositories.PreferenceStore
type PreferenceRepository struct {
	collection *mongo.Collection
}

// NewPreferenceRepository creates a preference repository
func NewPreferenceRepository(db *mongo.Database) *PreferenceRepository {
	return &PreferenceRepository{collection: db.Collection("preferences")}
}

func (r *PreferenceRepository) load(ctx context.Context, deviceID string) (*preferenceDocument, error) {
	var doc preferenceDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": deviceID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &preferenceDocument{DeviceID: deviceID}, nil
		}
		return nil, fmt.Errorf("failed to load preferences for device %s: %w", deviceID, err)
	}
	return &doc, nil
}

// set rewrites one field of the device document, creating it if needed
func (r *PreferenceRepository) set(ctx context.Context, deviceID, field string, value any) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": deviceID},
		bson.M{"$set": bson.M{field: value}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s for device %s: %w", field, deviceID, err)
	}
	return nil
}

func (r *PreferenceRepository) LoadExpressions(ctx context.Context, deviceID string) (entities.CustomExpressions, error) {
	doc, err := r.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if doc.Expressions == nil {
		return entities.CustomExpressions{}, nil
	}
	return doc.Expressions, nil
}

func (r *PreferenceRepository) SaveExpressions(ctx context.Context, deviceID string, expressions entities.CustomExpressions) error {
	if err := expressions.Validate(); err != nil {
		return err
	}
	if expressions == nil {
		expressions = entities.CustomExpressions{}
	}
	return r.set(ctx, deviceID, "expressions", expressions)
}

func (r *PreferenceRepository) LoadVoiceSettings(ctx context.Context, deviceID string) (entities.VoiceSettings, error) {
	doc, err := r.load(ctx, deviceID)
	if err != nil {
		return entities.VoiceSettings{}, err
	}
	if doc.VoiceSettings == nil {
		return entities.DefaultVoiceSettings(), nil
	}
	return *doc.VoiceSettings, nil
}

func (r *PreferenceRepository) SaveVoiceSettings(ctx context.Context, deviceID string, settings entities.VoiceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return r.set(ctx, deviceID, "voice_settings", settings)
}

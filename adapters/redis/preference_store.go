package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/satriahrh/wajah/domain/entities"
)

const keyPrefix = "wajah:prefs:"

// PreferenceStore keeps each preference record as one JSON value
type PreferenceStore struct {
	client *redis.Client
}

func NewPreferenceStore(client *redis.Client) *PreferenceStore {
	return &PreferenceStore{client: client}
}

func expressionsKey(deviceID string) string {
	return keyPrefix + deviceID + ":expressions"
}

func voiceKey(deviceID string) string {
	return keyPrefix + deviceID + ":voice"
}

// get decodes the value at key into v. It reports false when the key is
// missing.
func (s *PreferenceStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *PreferenceStore) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *PreferenceStore) LoadExpressions(ctx context.Context, deviceID string) (entities.CustomExpressions, error) {
	expressions := entities.CustomExpressions{}
	if _, err := s.get(ctx, expressionsKey(deviceID), &expressions); err != nil {
		return nil, err
	}
	return expressions, nil
}

func (s *PreferenceStore) SaveExpressions(ctx context.Context, deviceID string, expressions entities.CustomExpressions) error {
	if err := expressions.Validate(); err != nil {
		return err
	}
	if expressions == nil {
		expressions = entities.CustomExpressions{}
	}
	return s.put(ctx, expressionsKey(deviceID), expressions)
}

func (s *PreferenceStore) LoadVoiceSettings(ctx context.Context, deviceID string) (entities.VoiceSettings, error) {
	var settings entities.VoiceSettings
	found, err := s.get(ctx, voiceKey(deviceID), &settings)
	if err != nil {
		return entities.VoiceSettings{}, err
	}
	if !found {
		return entities.DefaultVoiceSettings(), nil
	}
	return settings, nil
}

func (s *PreferenceStore) SaveVoiceSettings(ctx context.Context, deviceID string, settings entities.VoiceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.put(ctx, voiceKey(deviceID), settings)
}

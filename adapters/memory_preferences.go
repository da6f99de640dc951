package adapters

import (
	"context"
	"sync"

	"github.com/satriahrh/wajah/domain/entities"
)

// MemoryPreferenceStore keeps preferences for the lifetime of the process
type MemoryPreferenceStore struct {
	mu          sync.RWMutex
	expressions map[string]entities.CustomExpressions
	settings    map[string]entities.VoiceSettings
}

// NewMemoryPreferenceStore creates an empty store
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		expressions: make(map[string]entities.CustomExpressions),
		settings:    make(map[string]entities.VoiceSettings),
	}
}

func (s *MemoryPreferenceStore) LoadExpressions(ctx context.Context, deviceID string) (entities.CustomExpressions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.expressions[deviceID]; ok {
		return e.Clone(), nil
	}
	return entities.CustomExpressions{}, nil
}

func (s *MemoryPreferenceStore) SaveExpressions(ctx context.Context, deviceID string, expressions entities.CustomExpressions) error {
	if err := expressions.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expressions[deviceID] = expressions.Clone()
	return nil
}

func (s *MemoryPreferenceStore) LoadVoiceSettings(ctx context.Context, deviceID string) (entities.VoiceSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.settings[deviceID]; ok {
		return v, nil
	}
	return entities.DefaultVoiceSettings(), nil
}

func (s *MemoryPreferenceStore) SaveVoiceSettings(ctx context.Context, deviceID string, settings entities.VoiceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[deviceID] = settings
	return nil
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/entities"
)

// SetThreshold updates the voice activity threshold and persists it
func (c *ConversationService) SetThreshold(ctx context.Context, threshold float64) error {
	settings := entities.VoiceSettings{NoiseThreshold: threshold}
	if err := settings.Validate(); err != nil {
		return err
	}
	c.do(func() { c.face.SetSettings(settings) })
	if err := c.preferences.SaveVoiceSettings(ctx, c.deviceID, settings); err != nil {
		c.logger.Warn("Failed to save voice settings", zap.Error(err))
		return err
	}
	return nil
}

// SaveMood adds or replaces a custom mood and persists the registry
func (c *ConversationService) SaveMood(ctx context.Context, name string, mood entities.CustomExpression) error {
	name = strings.TrimSpace(name)
	if err := entities.ValidateCustomExpression(name, mood); err != nil {
		return err
	}
	var registry entities.CustomExpressions
	c.do(func() {
		registry = c.face.Moods().Clone()
		registry[name] = mood
		c.face.SetMoods(registry.Clone())
	})
	return c.saveMoods(ctx, registry)
}

// DeleteMood removes a custom mood and persists the registry
func (c *ConversationService) DeleteMood(ctx context.Context, name string) error {
	var registry entities.CustomExpressions
	found := false
	c.do(func() {
		registry = c.face.Moods().Clone()
		_, found = registry[name]
		delete(registry, name)
		c.face.SetMoods(registry.Clone())
	})
	if !found {
		return fmt.Errorf("mood %q not found", name)
	}
	return c.saveMoods(ctx, registry)
}

func (c *ConversationService) saveMoods(ctx context.Context, registry entities.CustomExpressions) error {
	if err := c.preferences.SaveExpressions(ctx, c.deviceID, registry); err != nil {
		c.logger.Warn("Failed to save custom moods", zap.Error(err))
		return err
	}
	return nil
}

// ReloadPreferences re-reads both preference records from the store
func (c *ConversationService) ReloadPreferences(ctx context.Context) {
	moods, settings := c.readPreferences(ctx)
	c.do(func() {
		c.face.SetMoods(moods)
		c.face.SetSettings(settings)
	})
}

func (c *ConversationService) loadPreferences(ctx context.Context) {
	moods, settings := c.readPreferences(ctx)
	c.face.SetMoods(moods)
	c.face.SetSettings(settings)
}

func (c *ConversationService) readPreferences(ctx context.Context) (entities.CustomExpressions, entities.VoiceSettings) {
	moods, err := c.preferences.LoadExpressions(ctx, c.deviceID)
	if err != nil {
		c.logger.Warn("Failed to load custom moods, using none", zap.Error(err))
		moods = entities.CustomExpressions{}
	}
	if err := moods.Validate(); err != nil {
		c.logger.Warn("Stored custom moods are invalid, ignoring", zap.Error(err))
		moods = entities.CustomExpressions{}
	}

	settings, err := c.preferences.LoadVoiceSettings(ctx, c.deviceID)
	if err != nil || settings.Validate() != nil {
		c.logger.Warn("Failed to load voice settings, using defaults", zap.Error(err))
		settings = entities.DefaultVoiceSettings()
	}
	return moods, settings
}

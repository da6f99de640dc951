package gemini

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultLiveModel      = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultImageModel     = "imagen-4.0-generate-001"
	defaultVoice          = "Puck"
	defaultTimeoutSeconds = 30
	imageAttempts         = 3
)

// GeminiConfig holds the voice service settings
type GeminiConfig struct {
	APIKey         string `envconfig:"GEMINI_API_KEY"`
	LiveModel      string `envconfig:"GEMINI_LIVE_MODEL"`
	ImageModel     string `envconfig:"GEMINI_IMAGE_MODEL"`
	VoiceName      string `envconfig:"GEMINI_VOICE"`
	TimeoutSeconds int    `envconfig:"GEMINI_TIMEOUT_SECONDS"`
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return errors.New("Google AI API key is required")
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

func (c GeminiConfig) withDefaults() GeminiConfig {
	if c.LiveModel == "" {
		c.LiveModel = defaultLiveModel
	}
	if c.ImageModel == "" {
		c.ImageModel = defaultImageModel
	}
	if c.VoiceName == "" {
		c.VoiceName = defaultVoice
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	return c
}

func (c GeminiConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

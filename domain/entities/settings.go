package entities

import "fmt"

// DefaultNoiseThreshold is the mean absolute amplitude above which a captured
// frame counts as speech.
const DefaultNoiseThreshold = 0.01

// VoiceSettings holds the user-tunable voice activity parameters
type VoiceSettings struct {
	NoiseThreshold float64 `json:"noise_threshold" bson:"noise_threshold"`
}

// DefaultVoiceSettings returns the settings used before the user tunes anything
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{NoiseThreshold: DefaultNoiseThreshold}
}

// Validate checks the threshold is a usable amplitude
func (v VoiceSettings) Validate() error {
	if v.NoiseThreshold < 0 || v.NoiseThreshold > 1 {
		return fmt.Errorf("noise threshold must be between 0 and 1, got %f", v.NoiseThreshold)
	}
	return nil
}

package repositories

import (
	"context"

	"github.com/satriahrh/wajah/domain/entities"
)

// PreferenceStore persists per-device preferences. Both records are read when
// a face connects and rewritten in full on every edit. A missing record is
// not an error: loads return the empty registry or default settings.
type PreferenceStore interface {
	LoadExpressions(ctx context.Context, deviceID string) (entities.CustomExpressions, error)
	SaveExpressions(ctx context.Context, deviceID string, expressions entities.CustomExpressions) error
	LoadVoiceSettings(ctx context.Context, deviceID string) (entities.VoiceSettings, error)
	SaveVoiceSettings(ctx context.Context, deviceID string, settings entities.VoiceSettings) error
}

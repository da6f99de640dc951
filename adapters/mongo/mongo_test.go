package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
)

var (
	_ repositories.SessionRepository = &SessionRepository{}
	_ repositories.PreferenceStore   = &PreferenceRepository{}
)

// openTestDatabase requires a running MongoDB instance (skipped if
// MONGODB_URI is not set)
func openTestDatabase(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{URI: uri, Database: "wajah_test"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() {
		client.Database.Drop(ctx)
		client.Close(ctx)
	})
	return client
}

func TestSessionRepository_Integration(t *testing.T) {
	client := openTestDatabase(t)
	ctx := context.Background()
	repo := NewSessionRepository(client.Database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	first := entities.NewSession("test-device-001")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second := entities.NewSession("test-device-001")
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := repo.Create(ctx, second); err == nil {
		t.Error("Expected a duplicate session to be rejected")
	}

	second.Activate()
	second.End("user")
	if err := repo.Update(ctx, second); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}

	last, err := repo.GetLastByDeviceID(ctx, "test-device-001")
	if err != nil {
		t.Fatalf("Failed to get last session: %v", err)
	}
	if last.ID != second.ID || last.EndReason != "user" {
		t.Errorf("Expected ended second session, got %+v", last)
	}

	if none, err := repo.GetLastByDeviceID(ctx, "nobody"); err != nil || none != nil {
		t.Errorf("Expected no session, got %+v, %v", none, err)
	}
}

func TestPreferenceRepository_Integration(t *testing.T) {
	client := openTestDatabase(t)
	ctx := context.Background()
	repo := NewPreferenceRepository(client.Database)

	settings, err := repo.LoadVoiceSettings(ctx, "d1")
	if err != nil || settings != entities.DefaultVoiceSettings() {
		t.Fatalf("Expected default settings, got %v, %v", settings, err)
	}

	registry := entities.CustomExpressions{
		"cozy": {EyeBase: entities.ExpressionSleepy, MouthBase: entities.ExpressionHappy},
	}
	if err := repo.SaveExpressions(ctx, "d1", registry); err != nil {
		t.Fatalf("SaveExpressions failed: %v", err)
	}
	if err := repo.SaveVoiceSettings(ctx, "d1", entities.VoiceSettings{NoiseThreshold: 0.2}); err != nil {
		t.Fatalf("SaveVoiceSettings failed: %v", err)
	}

	moods, err := repo.LoadExpressions(ctx, "d1")
	if err != nil || moods["cozy"] != registry["cozy"] {
		t.Errorf("Expected cozy mood, got %v, %v", moods, err)
	}
	settings, _ = repo.LoadVoiceSettings(ctx, "d1")
	if settings.NoiseThreshold != 0.2 {
		t.Errorf("Expected threshold 0.2, got %v", settings.NoiseThreshold)
	}
}

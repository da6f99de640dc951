package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEVICES", "FACE-001:abc, FACE-002:def")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Port != "8080" || c.PreferenceStore != StoreMemory || c.TokenTTL != 24*time.Hour {
		t.Errorf("Unexpected defaults %+v", c)
	}
	if c.Conversation.HangoverFrames != 8 || c.Conversation.VisionInterval != time.Second {
		t.Errorf("Unexpected conversation defaults %+v", c.Conversation)
	}
	if c.Env() != Development {
		t.Errorf("Expected development, got %s", c.Env())
	}

	creds, _ := c.DeviceCredentials()
	if len(creds) != 2 || creds[1].SerialNumber != "FACE-002" || creds[1].Secret != "def" {
		t.Errorf("Unexpected credentials %+v", creds)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory stores", Config{PreferenceStore: StoreMemory, SessionStore: StoreMemory}, false},
		{"unknown preference store", Config{PreferenceStore: "sqlite", SessionStore: StoreMemory}, true},
		{"redis sessions", Config{PreferenceStore: StoreMemory, SessionStore: StoreRedis}, true},
		{"redis without url", Config{PreferenceStore: StoreRedis, SessionStore: StoreMemory}, true},
		{"production without secret", Config{Environment: "production", PreferenceStore: StoreMemory, SessionStore: StoreMemory}, true},
		{"bad device entry", Config{PreferenceStore: StoreMemory, SessionStore: StoreMemory, Devices: []string{"FACE-001"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	if got := ParseEnvironment("production"); !got.IsProduction() {
		t.Errorf("Expected production, got %s", got)
	}
	if got := ParseEnvironment("mars"); got != Development {
		t.Errorf("Expected unknown to fall back to development, got %s", got)
	}
}

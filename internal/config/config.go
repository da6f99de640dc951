package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/satriahrh/wajah/adapters/gemini"
	"github.com/satriahrh/wajah/adapters/mongo"
	"github.com/satriahrh/wajah/adapters/redis"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

// Config is the whole server configuration, read from the environment
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	// Devices lists serial:secret pairs allowed to authenticate
	Devices []string `envconfig:"DEVICES"`

	PreferenceStore string `envconfig:"PREFERENCE_STORE" default:"memory"`
	SessionStore    string `envconfig:"SESSION_STORE" default:"memory"`

	Gemini gemini.GeminiConfig
	Mongo  mongo.Config
	Redis  redis.Config

	Conversation ConversationConfig
}

// ConversationConfig tunes every face conversation
type ConversationConfig struct {
	HangoverFrames  int           `envconfig:"VAD_HANGOVER_FRAMES" default:"8"`
	MemoryBankLimit int           `envconfig:"MEMORY_BANK_LIMIT" default:"0"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"30s"`
	BoredomInterval time.Duration `envconfig:"BOREDOM_INTERVAL" default:"1m"`
	BoredomMax      int           `envconfig:"BOREDOM_MAX" default:"10"`
	VisionInterval  time.Duration `envconfig:"VISION_INTERVAL" default:"1s"`
	ScriptTimeout   time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"500ms"`
	MediaTimeout    time.Duration `envconfig:"MEDIA_TIMEOUT" default:"20s"`
	// MaxSessionDuration puts a face to sleep once its session ran this long
	MaxSessionDuration time.Duration `envconfig:"MAX_SESSION_DURATION" default:"15m"`
	SweepInterval      time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"30s"`
}

// DeviceCredential is one entry of Devices
type DeviceCredential struct {
	SerialNumber string
	Secret       string
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Env returns the parsed deployment environment
func (c *Config) Env() Environment {
	return ParseEnvironment(c.Environment)
}

// Validate checks cross-field rules envconfig cannot express
func (c *Config) Validate() error {
	switch c.PreferenceStore {
	case StoreMemory, StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("unknown preference store %q", c.PreferenceStore)
	}
	switch c.SessionStore {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}
	if c.PreferenceStore == StoreRedis && c.Redis.URL == "" {
		return errors.New("REDIS_URL is required for the redis preference store")
	}
	if c.Env().IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if _, err := c.DeviceCredentials(); err != nil {
		return err
	}
	return nil
}

// DeviceCredentials parses Devices
func (c *Config) DeviceCredentials() ([]DeviceCredential, error) {
	creds := make([]DeviceCredential, 0, len(c.Devices))
	for _, entry := range c.Devices {
		serial, secret, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || serial == "" || secret == "" {
			return nil, fmt.Errorf("invalid device entry %q, want serial:secret", entry)
		}
		creds = append(creds, DeviceCredential{SerialNumber: serial, Secret: secret})
	}
	return creds, nil
}

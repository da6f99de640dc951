package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/adapters"
	"github.com/satriahrh/wajah/adapters/gemini"
	"github.com/satriahrh/wajah/adapters/mongo"
	"github.com/satriahrh/wajah/adapters/redis"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/api"
	"github.com/satriahrh/wajah/internal/auth"
	"github.com/satriahrh/wajah/internal/config"
	"github.com/satriahrh/wajah/internal/logger"
	"github.com/satriahrh/wajah/internal/vision"
	"github.com/satriahrh/wajah/internal/websocket"
	"github.com/satriahrh/wajah/usecase"
)

const (
	devSerialNumber = "dev-face"
	devSecret       = "dev-secret"
	devJWTSecret    = "wajah-development-secret"
	sessionsKept    = 20
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env().IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Storage
	var (
		mongoClient *mongo.Client
		preferences repositories.PreferenceStore   = adapters.NewMemoryPreferenceStore()
		sessions    repositories.SessionRepository = adapters.NewMemorySessionRepository(sessionsKept)
	)
	if cfg.PreferenceStore == config.StoreMongo || cfg.SessionStore == config.StoreMongo {
		mongoClient, err = mongo.NewClient(ctx, cfg.Mongo, log)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoClient.Close(context.Background())
	}
	switch cfg.PreferenceStore {
	case config.StoreMongo:
		preferences = mongo.NewPreferenceRepository(mongoClient.Database)
	case config.StoreRedis:
		redisClient, err := cfg.Redis.New(ctx)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		preferences = redis.NewPreferenceStore(redisClient)
	}
	if cfg.SessionStore == config.StoreMongo {
		repo := mongo.NewSessionRepository(mongoClient.Database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("Failed to create session indexes", zap.Error(err))
		}
		sessions = repo
	}
	log.Info("Storage ready",
		zap.String("preferenceStore", cfg.PreferenceStore),
		zap.String("sessionStore", cfg.SessionStore))

	// Devices
	devices, err := registerDevices(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to register devices", zap.Error(err))
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		log.Warn("JWT_SECRET is not set, using the development secret")
		jwtSecret = devJWTSecret
	}
	signer, err := auth.NewSigner(jwtSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal("Failed to create token signer", zap.Error(err))
	}

	// Voice service
	var (
		voice  repositories.VoiceService
		images repositories.ImageGenerator
	)
	if cfg.Gemini.APIKey != "" {
		live, err := gemini.NewGeminiLive(ctx, cfg.Gemini, log)
		if err != nil {
			log.Fatal("Failed to create Gemini client", zap.Error(err))
		}
		voice, images = live, live.Images()
	} else {
		log.Warn("GEMINI_API_KEY is not set, faces talk to the mock voice service")
		voice, images = gemini.NewMockLive(), gemini.MockImages{}
	}

	conversationConfig := usecase.ConversationConfig{
		VoiceName:       cfg.Gemini.VoiceName,
		HangoverFrames:  cfg.Conversation.HangoverFrames,
		MemoryBankLimit: cfg.Conversation.MemoryBankLimit,
		ConnectTimeout:  cfg.Conversation.ConnectTimeout,
		BoredomInterval: cfg.Conversation.BoredomInterval,
		BoredomMax:      cfg.Conversation.BoredomMax,
		ScriptTimeout:   cfg.Conversation.ScriptTimeout,
		Vision:          vision.Config{Interval: cfg.Conversation.VisionInterval},
	}
	newConversation := func(deviceID string, media repositories.MediaDevices, presenter usecase.Presenter) *usecase.ConversationService {
		return usecase.NewConversationService(usecase.ConversationDeps{
			DeviceID:    deviceID,
			Voice:       voice,
			Devices:     media,
			Preferences: preferences,
			Sessions:    sessions,
			Images:      images,
			Presenter:   presenter,
			Logger:      log,
		}, conversationConfig)
	}

	hub := websocket.NewHub(newConversation, websocket.HubConfig{
		MediaTimeout:       cfg.Conversation.MediaTimeout,
		MaxSessionDuration: cfg.Conversation.MaxSessionDuration,
		SweepInterval:      cfg.Conversation.SweepInterval,
	}, log)
	go hub.Run(ctx)

	cleanup := websocket.NewSessionCleanupService(hub, log)
	cleanup.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(api.Metrics())

	api.InitRoutes(e, api.Deps{
		Hub:         hub,
		Devices:     devices,
		Preferences: preferences,
		Signer:      signer,
		Logger:      log,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Env().String()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	cleanup.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// registerDevices loads the configured devices. Development gets a fixed
// device when none is configured.
func registerDevices(ctx context.Context, cfg *config.Config, log *zap.Logger) (*adapters.MemoryDeviceRepository, error) {
	creds, err := cfg.DeviceCredentials()
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 && !cfg.Env().IsProduction() {
		log.Warn("No DEVICES configured, registering the development device",
			zap.String("serialNumber", devSerialNumber))
		creds = append(creds, config.DeviceCredential{SerialNumber: devSerialNumber, Secret: devSecret})
	}

	devices := adapters.NewMemoryDeviceRepository()
	for _, cred := range creds {
		device := &entities.Device{
			SerialNumber: cred.SerialNumber,
			Name:         cred.SerialNumber,
			Model:        "browser",
		}
		if err := devices.Register(ctx, device, cred.Secret); err != nil {
			return nil, fmt.Errorf("device %s: %w", cred.SerialNumber, err)
		}
	}
	log.Info("Devices registered", zap.Int("count", devices.Count()))
	return devices, nil
}

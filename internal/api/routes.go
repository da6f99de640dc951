package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/auth"
	"github.com/satriahrh/wajah/internal/websocket"
)

const storeTimeout = 5 * time.Second

// Deps are the collaborators of the HTTP layer
type Deps struct {
	Hub         *websocket.Hub
	Devices     repositories.DeviceRepository
	Preferences repositories.PreferenceStore
	Signer      *auth.Signer
	Logger      *zap.Logger
}

type handler struct {
	Deps
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps) {
	h := &handler{Deps: deps}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "wajah-server",
			"faces":   h.Hub.ClientCount(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/device/auth", h.deviceAuth)

	device := v1.Group("", RequireDevice(h.Signer, h.Logger))
	device.GET("/moods", h.getMoods)
	device.PUT("/moods", h.putMoods)
	device.GET("/settings/voice", h.getVoiceSettings)
	device.PUT("/settings/voice", h.putVoiceSettings)
	device.GET("/memories", h.getMemories)

	e.GET("/ws", h.websocketWithAuth)
}

func (h *handler) deviceAuth(c echo.Context) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		h.Logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := h.Devices.ValidateDevice(c.Request().Context(), req.SerialNumber, req.SecretKey)
	if err != nil {
		h.Logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, expiresAt, err := h.Signer.GenerateDeviceToken(device.ID)
	if err != nil {
		h.Logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.Logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
	})
}

func (h *handler) getMoods(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	moods, err := h.Preferences.LoadExpressions(ctx, deviceID(c))
	if err != nil {
		return h.storeError(c, "Failed to load moods", err)
	}
	if moods == nil {
		moods = entities.CustomExpressions{}
	}
	return c.JSON(http.StatusOK, MoodsResponse{Moods: moods})
}

// putMoods replaces the whole registry, then a connected face rereads it
func (h *handler) putMoods(c echo.Context) error {
	var req MoodsResponse
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}
	if req.Moods == nil {
		req.Moods = entities.CustomExpressions{}
	}
	if err := req.Moods.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_mood", Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	id := deviceID(c)
	if err := h.Preferences.SaveExpressions(ctx, id, req.Moods); err != nil {
		return h.storeError(c, "Failed to save moods", err)
	}
	h.reload(ctx, id)
	return c.JSON(http.StatusOK, req)
}

func (h *handler) getVoiceSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	settings, err := h.Preferences.LoadVoiceSettings(ctx, deviceID(c))
	if err != nil {
		return h.storeError(c, "Failed to load voice settings", err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *handler) putVoiceSettings(c echo.Context) error {
	var settings entities.VoiceSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}
	if err := settings.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_settings", Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	id := deviceID(c)
	if err := h.Preferences.SaveVoiceSettings(ctx, id, settings); err != nil {
		return h.storeError(c, "Failed to save voice settings", err)
	}
	h.reload(ctx, id)
	return c.JSON(http.StatusOK, settings)
}

// getMemories needs the face connected; the memory bank lives with it
func (h *handler) getMemories(c echo.Context) error {
	conversation, ok := h.Hub.Conversation(deviceID(c))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "face_not_connected",
			Message: "The face is not connected",
		})
	}
	memories := conversation.Memories()
	if memories == nil {
		memories = []entities.ThoughtArtifact{}
	}
	return c.JSON(http.StatusOK, MemoriesResponse{Memories: memories})
}

func (h *handler) reload(ctx context.Context, deviceID string) {
	if conversation, ok := h.Hub.Conversation(deviceID); ok {
		conversation.ReloadPreferences(ctx)
	}
}

func (h *handler) storeError(c echo.Context, message string, err error) error {
	h.Logger.Error(message, zap.String("device_id", deviceID(c)), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "store_error",
		Message: message,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (h *handler) websocketWithAuth(c echo.Context) error {
	deviceID, err := authenticate(c, h.Signer, h.Logger)
	if deviceID == "" {
		return err
	}

	h.Logger.Info("WebSocket connection authenticated", zap.String("device_id", deviceID))
	return websocket.HandleWebSocketWithAuth(h.Hub, c, deviceID, h.Logger)
}

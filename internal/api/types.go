package api

import (
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	SecretKey    string `json:"secret_key" validate:"required"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// MoodsResponse lists the custom moods of a device
type MoodsResponse struct {
	Moods entities.CustomExpressions `json:"moods"`
}

// MemoriesResponse lists the memory bank of a connected face, oldest first
type MemoriesResponse struct {
	Memories []entities.ThoughtArtifact `json:"memories"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

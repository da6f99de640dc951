package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle of one voice-service session
type SessionState string

const (
	SessionStateDisconnected SessionState = "disconnected"
	SessionStateConnecting   SessionState = "connecting"
	SessionStateActive       SessionState = "active"
	SessionStateClosing      SessionState = "closing"
)

// Session is the record of one wake-to-disconnect conversation of a device
type Session struct {
	ID           string       `json:"id" bson:"_id"`
	DeviceID     string       `json:"device_id" bson:"device_id"`
	State        SessionState `json:"state" bson:"state"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
	ConnectedAt  *time.Time   `json:"connected_at,omitempty" bson:"connected_at,omitempty"`
	EndedAt      *time.Time   `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	LastActiveAt time.Time    `json:"last_active_at" bson:"last_active_at"`
	EndReason    string       `json:"end_reason,omitempty" bson:"end_reason,omitempty"`
}

// NewSession creates a session record in the connecting state
func NewSession(deviceID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		DeviceID:     deviceID,
		State:        SessionStateConnecting,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Activate marks the session as connected to the voice service
func (s *Session) Activate() {
	now := time.Now()
	s.State = SessionStateActive
	s.ConnectedAt = &now
	s.LastActiveAt = now
}

// Touch updates the last active timestamp
func (s *Session) Touch() {
	s.LastActiveAt = time.Now()
}

// End closes the session. Ending an already ended session keeps the first reason.
func (s *Session) End(reason string) {
	if s.EndedAt != nil {
		return
	}
	now := time.Now()
	s.State = SessionStateDisconnected
	s.EndedAt = &now
	s.EndReason = reason
}

// IsActive reports whether audio may flow on this session
func (s *Session) IsActive() bool {
	return s.State == SessionStateActive && s.EndedAt == nil
}

// Duration returns how long the session has been (or was) connected
func (s *Session) Duration() time.Duration {
	if s.ConnectedAt == nil {
		return 0
	}
	if s.EndedAt != nil {
		return s.EndedAt.Sub(*s.ConnectedAt)
	}
	return time.Since(*s.ConnectedAt)
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}

	switch s.State {
	case SessionStateDisconnected, SessionStateConnecting, SessionStateActive, SessionStateClosing:
	default:
		return errors.New("invalid session state")
	}

	return nil
}

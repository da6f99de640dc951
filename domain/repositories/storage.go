package repositories

import (
	"context"

	"github.com/satriahrh/wajah/domain/entities"
)

// DeviceRepository authenticates face clients
type DeviceRepository interface {
	ValidateDevice(ctx context.Context, serialNumber, secret string) (*entities.Device, error)
}

// SessionRepository records the lifecycle of voice sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	Update(ctx context.Context, session *entities.Session) error
	GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error)
}

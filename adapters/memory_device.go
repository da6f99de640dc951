package adapters

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
)

type registeredDevice struct {
	device     entities.Device
	secretHash [sha256.Size]byte
}

// MemoryDeviceRepository holds the devices allowed to connect, keyed by
// serial number. It is filled from configuration at startup.
type MemoryDeviceRepository struct {
	mu       sync.RWMutex
	bySerial map[string]*registeredDevice
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{bySerial: make(map[string]*registeredDevice)}
}

// Register adds a device with its secret. A missing ID is generated and
// written back to device.
func (m *MemoryDeviceRepository) Register(ctx context.Context, device *entities.Device, secret string) error {
	if device == nil {
		return fmt.Errorf("register device: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("register device %s: empty secret", device.SerialNumber)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.bySerial[device.SerialNumber]; taken {
		return fmt.Errorf("register device %s: serial number already registered", device.SerialNumber)
	}
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt

	m.bySerial[device.SerialNumber] = &registeredDevice{
		device:     *device,
		secretHash: sha256.Sum256([]byte(secret)),
	}
	return nil
}

// ValidateDevice returns a copy of the device when the secret matches.
// Unknown serials and wrong secrets both give domain.ErrInvalidCredentials.
func (m *MemoryDeviceRepository) ValidateDevice(ctx context.Context, serialNumber, secret string) (*entities.Device, error) {
	m.mu.RLock()
	reg, ok := m.bySerial[serialNumber]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	hash := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare(hash[:], reg.secretHash[:]) != 1 {
		return nil, domain.ErrInvalidCredentials
	}
	device := reg.device
	return &device, nil
}

// Count returns the number of registered devices
func (m *MemoryDeviceRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySerial)
}

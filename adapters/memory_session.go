package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/satriahrh/wajah/domain/entities"
)

// MemorySessionRepository keeps session records in memory. Only the most
// recent records per device are kept.
type MemorySessionRepository struct {
	mu        sync.RWMutex
	sessions  map[string]*entities.Session
	byDevice  map[string][]string
	perDevice int
}

// NewMemorySessionRepository keeps up to perDevice records for each device
func NewMemorySessionRepository(perDevice int) *MemorySessionRepository {
	if perDevice <= 0 {
		perDevice = 20
	}
	return &MemorySessionRepository{
		sessions:  make(map[string]*entities.Session),
		byDevice:  make(map[string][]string),
		perDevice: perDevice,
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s := *session
	r.sessions[s.ID] = &s

	ids := append(r.byDevice[s.DeviceID], s.ID)
	if len(ids) > r.perDevice {
		for _, old := range ids[:len(ids)-r.perDevice] {
			delete(r.sessions, old)
		}
		ids = append([]string(nil), ids[len(ids)-r.perDevice:]...)
	}
	r.byDevice[s.DeviceID] = ids
	return nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		return fmt.Errorf("session with ID %s not found", session.ID)
	}
	s := *session
	r.sessions[s.ID] = &s
	return nil
}

// GetLastByDeviceID returns nil without error when the device has no session
func (r *MemorySessionRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byDevice[deviceID]
	if len(ids) == 0 {
		return nil, nil
	}
	s := *r.sessions[ids[len(ids)-1]]
	return &s, nil
}

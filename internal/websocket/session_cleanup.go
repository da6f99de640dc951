package websocket

import (
	"time"

	"go.uber.org/zap"
)

const defaultSweepInterval = 30 * time.Second

// SessionCleanupService puts faces to sleep once their voice session has been
// active longer than the configured maximum. The voice service caps session
// length on its side; sleeping first ends the session cleanly.
type SessionCleanupService struct {
	hub         *Hub
	maxDuration time.Duration
	interval    time.Duration
	now         func() time.Time
	logger      *zap.Logger
	stopChan    chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(hub *Hub, logger *zap.Logger) *SessionCleanupService {
	interval := hub.config.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionCleanupService{
		hub:         hub,
		maxDuration: hub.config.MaxSessionDuration,
		interval:    interval,
		now:         time.Now,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background sweep. It does nothing when no maximum is set.
func (s *SessionCleanupService) Start() {
	if s.maxDuration <= 0 {
		s.logger.Info("Session cleanup disabled")
		return
	}
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("maxDuration", s.maxDuration))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Session cleanup service stopped")
}

func (s *SessionCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup sleeps every face past the limit and returns how many it put
// to sleep
func (s *SessionCleanupService) runCleanup() int {
	now := s.now()
	slept := 0
	for _, client := range s.hub.snapshot() {
		active := client.ActiveFor(now)
		if active < s.maxDuration || active == 0 {
			continue
		}
		s.logger.Info("Session reached its maximum duration, sleeping",
			zap.String("deviceID", client.deviceID),
			zap.Duration("active", active))
		client.conversation.Sleep()
		slept++
	}
	return slept
}

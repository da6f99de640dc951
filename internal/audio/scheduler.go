package audio

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/entities"
)

// Clock is the output clock the scheduler plans against
type Clock interface {
	// Now returns the current output time in seconds
	Now() float64
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback armed by a Clock
type Timer interface {
	Stop() bool
}

// Handle identifies one scheduled chunk on the output clock
type Handle struct {
	ID       string
	StartAt  float64
	Duration float64
}

// EndAt returns when the chunk finishes playing
func (h Handle) EndAt() float64 {
	return h.StartAt + h.Duration
}

// Sink is the output audio graph chunks are scheduled on
type Sink interface {
	Play(h Handle, buf *Buffer) error
	Stop(h Handle) error
}

// StatusController reads and writes the conversation status
type StatusController interface {
	Status() entities.ConversationStatus
	SetStatus(status entities.ConversationStatus)
}

type scheduled struct {
	handle Handle
	timer  Timer
}

// Scheduler plays decoded chunks back to back without gaps or overlap. It is
// not safe for concurrent use: every call, including completion callbacks,
// must run on the owner's loop, which post delivers to.
type Scheduler struct {
	sink   Sink
	clock  Clock
	status StatusController
	post   func(func())
	logger *zap.Logger

	nextStartTime float64
	pending       map[string]*scheduled
}

// NewScheduler creates a scheduler. A nil post runs completions inline.
func NewScheduler(sink Sink, clock Clock, status StatusController, post func(func()), logger *zap.Logger) *Scheduler {
	if post == nil {
		post = func(f func()) { f() }
	}
	return &Scheduler{
		sink:    sink,
		clock:   clock,
		status:  status,
		post:    post,
		logger:  logger,
		pending: make(map[string]*scheduled),
	}
}

// Enqueue schedules buf right after the previously scheduled chunk, or now if
// the output has drained.
func (s *Scheduler) Enqueue(buf *Buffer) (Handle, error) {
	startAt := s.nextStartTime
	if now := s.clock.Now(); now > startAt {
		startAt = now
	}

	h := Handle{
		ID:       uuid.New().String(),
		StartAt:  startAt,
		Duration: buf.Seconds(),
	}
	if err := s.sink.Play(h, buf); err != nil {
		s.logger.Warn("Failed to schedule audio chunk", zap.String("chunkId", h.ID), zap.Error(err))
		return Handle{}, err
	}

	s.nextStartTime = h.EndAt()
	entry := &scheduled{handle: h}
	s.pending[h.ID] = entry
	s.status.SetStatus(entities.StatusSpeaking)

	wait := time.Duration((h.EndAt() - s.clock.Now()) * float64(time.Second))
	entry.timer = s.clock.AfterFunc(wait, func() {
		s.post(func() { s.complete(h.ID) })
	})

	return h, nil
}

func (s *Scheduler) complete(id string) {
	if _, ok := s.pending[id]; !ok {
		return
	}
	delete(s.pending, id)
	if len(s.pending) == 0 && s.status.Status() == entities.StatusSpeaking {
		s.status.SetStatus(entities.StatusIdle)
	}
}

// StopAll silences every scheduled chunk and resets the timeline
func (s *Scheduler) StopAll() {
	for id, entry := range s.pending {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		if err := s.sink.Stop(entry.handle); err != nil {
			s.logger.Debug("Failed to stop audio chunk", zap.String("chunkId", id), zap.Error(err))
		}
		delete(s.pending, id)
	}
	s.nextStartTime = 0
	s.status.SetStatus(entities.StatusIdle)
}

// Pending returns the number of chunks scheduled but not yet finished
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// NextStartTime returns where the next chunk would be placed if the output
// clock had not caught up yet.
func (s *Scheduler) NextStartTime() float64 {
	return s.nextStartTime
}

// SystemClock measures output time from when it was created
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a clock at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns seconds elapsed since the clock started
func (c *SystemClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// AfterFunc wraps time.AfterFunc
func (c *SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package audio

import (
	"errors"
	"sort"
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

type fakeClock struct {
	now    float64
	timers []*fakeTimer
}

type fakeTimer struct {
	fireAt  float64
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) Now() float64 { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{fireAt: c.now + d.Seconds(), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires due timers in deadline order
func (c *fakeClock) Advance(seconds float64) {
	c.now += seconds
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].fireAt < c.timers[j].fireAt })
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.fireAt <= c.now+1e-9 {
			t.fired = true
			t.f()
		}
	}
}

type fakeSink struct {
	played  []Handle
	stopped []Handle
	failOn  int
}

func (s *fakeSink) Play(h Handle, buf *Buffer) error {
	if s.failOn > 0 && len(s.played)+1 == s.failOn {
		s.failOn = 0
		return errors.New("output closed")
	}
	s.played = append(s.played, h)
	return nil
}

func (s *fakeSink) Stop(h Handle) error {
	s.stopped = append(s.stopped, h)
	return nil
}

type fakeStatus struct {
	status  entities.ConversationStatus
	history []entities.ConversationStatus
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{status: entities.StatusIdle}
}

func (s *fakeStatus) Status() entities.ConversationStatus { return s.status }

func (s *fakeStatus) SetStatus(status entities.ConversationStatus) {
	s.status = status
	s.history = append(s.history, status)
}

// halfSecond returns a 0.5s mono buffer at 100 Hz
func halfSecond() *Buffer {
	return &Buffer{Channels: [][]float32{make([]float32, 50)}, SampleRate: 100}
}

package audio

import (
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/wajah/domain/entities"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScheduler_GaplessSequence(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	status := newFakeStatus()
	s := NewScheduler(sink, clock, status, nil, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		if _, err := s.Enqueue(halfSecond()); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		clock.Advance(0.1)
	}

	if len(sink.played) != 3 {
		t.Fatalf("Expected 3 scheduled chunks, got %d", len(sink.played))
	}
	for i := 1; i < len(sink.played); i++ {
		prev, cur := sink.played[i-1], sink.played[i]
		if !approx(cur.StartAt, prev.EndAt()) {
			t.Errorf("Chunk %d starts at %f, expected %f (end of previous)", i, cur.StartAt, prev.EndAt())
		}
	}
	if status.Status() != entities.StatusSpeaking {
		t.Errorf("Expected speaking while chunks are pending, got %s", status.Status())
	}
	if !approx(s.NextStartTime(), 1.5) {
		t.Errorf("Expected next start time 1.5, got %f", s.NextStartTime())
	}
}

func TestScheduler_StartsAtNowAfterDrain(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(sink, clock, newFakeStatus(), nil, zaptest.NewLogger(t))

	s.Enqueue(halfSecond())
	clock.Advance(3)

	h, err := s.Enqueue(halfSecond())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !approx(h.StartAt, 3) {
		t.Errorf("Expected chunk to start at current time 3, got %f", h.StartAt)
	}
}

func TestScheduler_IdleWhenDrained(t *testing.T) {
	clock := &fakeClock{}
	status := newFakeStatus()
	s := NewScheduler(&fakeSink{}, clock, status, nil, zaptest.NewLogger(t))

	s.Enqueue(halfSecond())
	s.Enqueue(halfSecond())

	clock.Advance(0.5)
	if s.Pending() != 1 {
		t.Errorf("Expected 1 pending chunk after first completes, got %d", s.Pending())
	}
	if status.Status() != entities.StatusSpeaking {
		t.Errorf("Expected speaking with a chunk pending, got %s", status.Status())
	}

	clock.Advance(0.5)
	if s.Pending() != 0 {
		t.Errorf("Expected no pending chunks, got %d", s.Pending())
	}
	if status.Status() != entities.StatusIdle {
		t.Errorf("Expected idle after playback drains, got %s", status.Status())
	}
}

func TestScheduler_StopAll(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	status := newFakeStatus()
	s := NewScheduler(sink, clock, status, nil, zaptest.NewLogger(t))

	for i := 0; i < 4; i++ {
		s.Enqueue(halfSecond())
	}

	s.StopAll()

	if len(sink.stopped) != 4 {
		t.Errorf("Expected 4 chunks stopped, got %d", len(sink.stopped))
	}
	if s.Pending() != 0 {
		t.Errorf("Expected no pending chunks, got %d", s.Pending())
	}
	if s.NextStartTime() != 0 {
		t.Errorf("Expected next start time reset to 0, got %f", s.NextStartTime())
	}
	if status.Status() != entities.StatusIdle {
		t.Errorf("Expected idle right after StopAll, got %s", status.Status())
	}

	// Stale completions must not touch the new timeline
	clock.Advance(0.2)
	h, _ := s.Enqueue(halfSecond())
	if !approx(h.StartAt, 0.2) {
		t.Errorf("Expected fresh chunk at current time 0.2, got %f", h.StartAt)
	}
	clock.Advance(0.4)
	if s.Pending() != 1 || status.Status() != entities.StatusSpeaking {
		t.Errorf("Expected fresh chunk still playing, pending=%d status=%s", s.Pending(), status.Status())
	}
}

func TestScheduler_StopAllWhenEmpty(t *testing.T) {
	status := newFakeStatus()
	s := NewScheduler(&fakeSink{}, &fakeClock{}, status, nil, zaptest.NewLogger(t))

	s.StopAll()
	s.StopAll()

	if status.Status() != entities.StatusIdle {
		t.Errorf("Expected idle, got %s", status.Status())
	}
}

func TestScheduler_PlayFailure(t *testing.T) {
	sink := &fakeSink{failOn: 1}
	status := newFakeStatus()
	s := NewScheduler(sink, &fakeClock{}, status, nil, zaptest.NewLogger(t))

	if _, err := s.Enqueue(halfSecond()); err == nil {
		t.Fatal("Expected error from failing sink")
	}
	if s.Pending() != 0 || s.NextStartTime() != 0 {
		t.Errorf("Failed chunk must not be scheduled, pending=%d next=%f", s.Pending(), s.NextStartTime())
	}
	if status.Status() != entities.StatusIdle {
		t.Errorf("Expected status to stay idle, got %s", status.Status())
	}
}

func TestScheduler_PostsCompletionToLoop(t *testing.T) {
	clock := &fakeClock{}
	var queued []func()
	post := func(f func()) { queued = append(queued, f) }
	s := NewScheduler(&fakeSink{}, clock, newFakeStatus(), post, zaptest.NewLogger(t))

	s.Enqueue(halfSecond())
	clock.Advance(1)

	if s.Pending() != 1 {
		t.Fatalf("Completion should wait for the loop, pending=%d", s.Pending())
	}
	if len(queued) != 1 {
		t.Fatalf("Expected 1 posted completion, got %d", len(queued))
	}
	queued[0]()
	if s.Pending() != 0 {
		t.Errorf("Expected completion applied, pending=%d", s.Pending())
	}
}

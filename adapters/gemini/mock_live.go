package gemini

import (
	"context"
	"io"
	"sync"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
)

// MockLive is a voice service for running without an API key. Each session
// greets once with a smile and then stays silent.
type MockLive struct{}

// NewMockLive creates a mock voice service
func NewMockLive() *MockLive {
	return &MockLive{}
}

func (m *MockLive) Connect(ctx context.Context, config repositories.SessionConfig) (repositories.LiveSession, error) {
	s := &mockSession{
		events: make(chan *repositories.ServerEvent, 8),
		done:   make(chan struct{}),
	}
	s.events <- &repositories.ServerEvent{
		OutputTranscript: "Hello! I'm a mock face, no voice service is configured.",
		ToolCalls: []repositories.ToolInvocation{{
			ID:   "mock-greeting",
			Name: "set_expression",
			Args: map[string]any{"expression": string(entities.ExpressionHappy)},
		}},
		TurnComplete: true,
	}
	return s, nil
}

type mockSession struct {
	events chan *repositories.ServerEvent
	done   chan struct{}
	once   sync.Once
}

func (s *mockSession) SendAudio(entities.Blob) error { return nil }
func (s *mockSession) SendImage(entities.Blob) error { return nil }

func (s *mockSession) SendToolResults(results []repositories.ToolResult) error {
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	return nil
}

func (s *mockSession) Receive(ctx context.Context) (*repositories.ServerEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, io.EOF
	case ev := <-s.events:
		return ev, nil
	}
}

func (s *mockSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// MockImages returns a fixed 1x1 PNG for every prompt
type MockImages struct{}

func (MockImages) Generate(ctx context.Context, prompt string) (entities.Blob, error) {
	return entities.Blob{
		Data:     "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8DwHwAFBQIAX8jx0gAAAABJRU5ErkJggg==",
		MIMEType: "image/png",
	}, nil
}

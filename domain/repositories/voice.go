package repositories

import (
	"context"

	"github.com/satriahrh/wajah/domain/entities"
)

// VoiceService opens streaming sessions with the hosted voice model
type VoiceService interface {
	Connect(ctx context.Context, config SessionConfig) (LiveSession, error)
}

// LiveSession is one bidirectional streaming session. Send methods may be
// called from any goroutine; Receive must be called from a single goroutine.
type LiveSession interface {
	SendAudio(blob entities.Blob) error
	SendImage(blob entities.Blob) error
	SendToolResults(results []ToolResult) error
	// Receive blocks until the next server event. It returns an error once
	// the stream is closed or broken.
	Receive(ctx context.Context) (*ServerEvent, error)
	Close() error
}

// SessionConfig is fixed for the lifetime of a session
type SessionConfig struct {
	VoiceName           string
	SystemInstruction   string
	Tools               []ToolDeclaration
	InputTranscription  bool
	OutputTranscription bool
}

// AudioPart is one chunk of synthesized speech as little-endian int16 PCM
type AudioPart struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// ServerEvent is the union of everything one server message may carry
type ServerEvent struct {
	Audio            []AudioPart
	InputTranscript  string
	OutputTranscript string
	ToolCalls        []ToolInvocation
	TurnComplete     bool
	Interrupted      bool
}

// ToolInvocation is a model request to run a named tool
type ToolInvocation struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers exactly one ToolInvocation
type ToolResult struct {
	ID     string
	Name   string
	Output string
	Error  string
}

// ToolParameter describes one argument of a tool
type ToolParameter struct {
	Name        string
	Type        string // "string" or "number"
	Description string
	Enum        []string
	Required    bool
}

// ToolDeclaration is a tool advertised to the model at connect time
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ImageGenerator renders an image from a text prompt
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (entities.Blob, error)
}

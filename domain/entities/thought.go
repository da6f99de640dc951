package entities

import (
	"time"

	"github.com/google/uuid"
)

// ThoughtKind is the kind of visual shown next to the face
type ThoughtKind string

const (
	ThoughtText           ThoughtKind = "text"
	ThoughtImage          ThoughtKind = "image"
	ThoughtVideo          ThoughtKind = "video"
	ThoughtGeneratedImage ThoughtKind = "generated-image"
	ThoughtMusicRef       ThoughtKind = "music-ref"
)

// ParseThoughtKind maps a tool argument to a kind. Unknown values are text.
func ParseThoughtKind(v string) ThoughtKind {
	switch ThoughtKind(v) {
	case ThoughtImage, ThoughtVideo, ThoughtGeneratedImage, ThoughtMusicRef:
		return ThoughtKind(v)
	case "music":
		return ThoughtMusicRef
	default:
		return ThoughtText
	}
}

// Archivable reports whether thoughts of this kind go to the memory bank
func (k ThoughtKind) Archivable() bool {
	return k == ThoughtImage || k == ThoughtGeneratedImage
}

// ThoughtArtifact is a transient visual the agent chose to display
type ThoughtArtifact struct {
	ID        string      `json:"id"`
	Kind      ThoughtKind `json:"kind"`
	Payload   string      `json:"payload"`
	Prompt    string      `json:"prompt,omitempty"`
	Pending   bool        `json:"pending,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewThought creates a thought artifact stamped with the current time
func NewThought(kind ThoughtKind, payload, prompt string) *ThoughtArtifact {
	return &ThoughtArtifact{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		Prompt:    prompt,
		CreatedAt: time.Now(),
	}
}

// MemoryBank archives image thoughts, most recent first. A zero limit keeps
// everything.
type MemoryBank struct {
	items []ThoughtArtifact
	limit int
}

// NewMemoryBank creates a memory bank. limit <= 0 means unbounded.
func NewMemoryBank(limit int) *MemoryBank {
	return &MemoryBank{limit: limit}
}

// Add archives a copy of the thought at the front
func (m *MemoryBank) Add(t ThoughtArtifact) {
	m.items = append([]ThoughtArtifact{t}, m.items...)
	if m.limit > 0 && len(m.items) > m.limit {
		m.items = m.items[:m.limit]
	}
}

// Items returns a copy of the archive, most recent first
func (m *MemoryBank) Items() []ThoughtArtifact {
	out := make([]ThoughtArtifact, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the number of archived thoughts
func (m *MemoryBank) Len() int {
	return len(m.items)
}

package entities

// ConversationStatus is what the face is doing right now. It drives both
// audio scheduling decisions and face animation.
type ConversationStatus string

const (
	StatusIdle      ConversationStatus = "idle"
	StatusListening ConversationStatus = "listening"
	StatusSpeaking  ConversationStatus = "speaking"
	StatusThinking  ConversationStatus = "thinking"
)

// Valid reports whether s is one of the known statuses
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusListening, StatusSpeaking, StatusThinking:
		return true
	}
	return false
}

// Speaker identifies who produced a transcript line
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

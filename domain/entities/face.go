package entities

// FaceState is the snapshot a face client renders. It is a pure function of
// the conversation state at the time it was taken.
type FaceState struct {
	SessionState   SessionState       `json:"session_state"`
	Status         ConversationStatus `json:"status"`
	Expression     string             `json:"expression"`
	Eye            Expression         `json:"eye"`
	Mouth          Expression         `json:"mouth"`
	Stickers       []Sticker          `json:"stickers"`
	Thought        *ThoughtArtifact   `json:"thought,omitempty"`
	Style          string             `json:"style,omitempty"`
	Vision         VisionSource       `json:"vision"`
	Boredom        int                `json:"boredom"`
	MicLevel       float64            `json:"mic_level"`
	NoiseThreshold float64            `json:"noise_threshold"`
	CustomMoods    CustomExpressions  `json:"custom_moods"`
	MemoryCount    int                `json:"memory_count"`
}

package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Intents sent by the face client
const (
	MessageTypeWake          MessageType = "wake"
	MessageTypeSleep         MessageType = "sleep"
	MessageTypeTouch         MessageType = "touch"
	MessageTypeSetThreshold  MessageType = "set_threshold"
	MessageTypeSaveMood      MessageType = "save_mood"
	MessageTypeDeleteMood    MessageType = "delete_mood"
	MessageTypeMediaResponse MessageType = "media_response"
	MessageTypePing          MessageType = "ping"
)

// Messages sent to the face client
const (
	MessageTypeState        MessageType = "state"
	MessageTypeTranscript   MessageType = "transcript"
	MessageTypePlayAudio    MessageType = "play_audio"
	MessageTypeStopAudio    MessageType = "stop_audio"
	MessageTypeMediaRequest MessageType = "media_request"
	MessageTypeMediaRelease MessageType = "media_release"
	MessageTypeOpenURL      MessageType = "open_url"
	MessageTypeError        MessageType = "error"
	MessageTypePong         MessageType = "pong"
)

// Binary frame tags. The first byte of a binary frame says what follows.
const (
	FrameMicrophone byte = 0x01
	FrameCamera     byte = 0x02
	FrameScreen     byte = 0x03
)

// Media kinds named in media requests
const (
	MediaMicrophone = "microphone"
	MediaCamera     = "camera"
	MediaScreen     = "screen"
)

// Reasons a face client gives when it refuses a media request
const (
	MediaErrorDenied      = "denied"
	MediaErrorUnsupported = "unsupported"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// WakeMessage asks the face to connect to the voice service
type WakeMessage struct {
	BaseMessage
}

// SleepMessage asks the face to end its session
type SleepMessage struct {
	BaseMessage
}

// TouchMessage reports a tap on a region of the face
type TouchMessage struct {
	BaseMessage
	Region string `json:"region"`
}

// SetThresholdMessage tunes the voice activity threshold
type SetThresholdMessage struct {
	BaseMessage
	Threshold float64 `json:"threshold"`
}

// SaveMoodMessage adds or replaces a custom mood
type SaveMoodMessage struct {
	BaseMessage
	Name      string              `json:"name"`
	EyeBase   entities.Expression `json:"eye_base"`
	MouthBase entities.Expression `json:"mouth_base"`
}

// DeleteMoodMessage removes a custom mood
type DeleteMoodMessage struct {
	BaseMessage
	Name string `json:"name"`
}

// MediaResponseMessage answers a media request
type MediaResponseMessage struct {
	BaseMessage
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
	Error     string `json:"error,omitempty"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage carries a full face snapshot
type StateMessage struct {
	BaseMessage
	State entities.FaceState `json:"state"`
}

// TranscriptMessage carries one caption line, new or extended
type TranscriptMessage struct {
	BaseMessage
	Line entities.TranscriptLine `json:"line"`
}

// PlayAudioMessage schedules one PCM chunk at StartAt seconds on the output
// clock, which starts when the output is opened.
type PlayAudioMessage struct {
	BaseMessage
	ID         string  `json:"id"`
	StartAt    float64 `json:"start_at"`
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sample_rate"`
	Data       string  `json:"data"`
	MIMEType   string  `json:"mime_type"`
}

// StopAudioMessage cancels a scheduled chunk. An empty ID stops everything.
type StopAudioMessage struct {
	BaseMessage
	ID string `json:"id,omitempty"`
}

// MediaRequestMessage asks the face client to start a capture
type MediaRequestMessage struct {
	BaseMessage
	RequestID  string `json:"request_id"`
	Kind       string `json:"kind"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// MediaReleaseMessage tells the face client a capture is no longer needed
type MediaReleaseMessage struct {
	BaseMessage
	Kind string `json:"kind"`
}

// OpenURLMessage asks the face client to open a page
type OpenURLMessage struct {
	BaseMessage
	URL string `json:"url"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code      string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming intent
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeWake:
		return &WakeMessage{BaseMessage: base}, nil

	case MessageTypeSleep:
		return &SleepMessage{BaseMessage: base}, nil

	case MessageTypeTouch:
		var msg TouchMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid touch message: %w", err)
		}
		return &msg, nil

	case MessageTypeSetThreshold:
		var msg SetThresholdMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid set_threshold message: %w", err)
		}
		if msg.Threshold < 0 || msg.Threshold > 1 {
			return nil, fmt.Errorf("threshold must be between 0 and 1")
		}
		return &msg, nil

	case MessageTypeSaveMood:
		var msg SaveMoodMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid save_mood message: %w", err)
		}
		if strings.TrimSpace(msg.Name) == "" {
			return nil, errors.New("name is required")
		}
		return &msg, nil

	case MessageTypeDeleteMood:
		var msg DeleteMoodMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid delete_mood message: %w", err)
		}
		if msg.Name == "" {
			return nil, errors.New("name is required")
		}
		return &msg, nil

	case MessageTypeMediaResponse:
		var msg MediaResponseMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid media_response message: %w", err)
		}
		if msg.RequestID == "" {
			return nil, errors.New("request_id is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// ParseBinaryFrame splits a tagged binary frame. Unknown tags and empty
// payloads are rejected.
func ParseBinaryFrame(data []byte) (byte, []byte, error) {
	if len(data) < 2 {
		return 0, nil, errors.New("binary frame too short")
	}
	switch data[0] {
	case FrameMicrophone:
		if (len(data)-1)%4 != 0 {
			return 0, nil, fmt.Errorf("microphone frame length %d is not a multiple of 4", len(data)-1)
		}
	case FrameCamera, FrameScreen:
	default:
		return 0, nil, fmt.Errorf("unknown binary frame tag 0x%02x", data[0])
	}
	return data[0], data[1:], nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string, retryable bool) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Retryable:   retryable,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateStateMessage wraps a face snapshot
func CreateStateMessage(state entities.FaceState) *StateMessage {
	return &StateMessage{BaseMessage: newBase(MessageTypeState), State: state}
}

// CreateTranscriptMessage wraps a caption line
func CreateTranscriptMessage(line entities.TranscriptLine) *TranscriptMessage {
	return &TranscriptMessage{BaseMessage: newBase(MessageTypeTranscript), Line: line}
}

// CreateOpenURLMessage asks the client to open url
func CreateOpenURLMessage(url string) *OpenURLMessage {
	return &OpenURLMessage{BaseMessage: newBase(MessageTypeOpenURL), URL: url}
}

package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

func TestMessageValidator_Intents(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		want    interface{}
		wantErr bool
	}{
		{name: "wake", message: `{"type":"wake"}`, want: &WakeMessage{}},
		{name: "sleep", message: `{"type":"sleep"}`, want: &SleepMessage{}},
		{name: "touch", message: `{"type":"touch","region":"left_eye"}`, want: &TouchMessage{}},
		{name: "threshold", message: `{"type":"set_threshold","threshold":0.05}`, want: &SetThresholdMessage{}},
		{name: "threshold too high", message: `{"type":"set_threshold","threshold":1.5}`, wantErr: true},
		{name: "negative threshold", message: `{"type":"set_threshold","threshold":-0.1}`, wantErr: true},
		{
			name:    "save mood",
			message: `{"type":"save_mood","name":"smug","eye_base":"skeptical","mouth_base":"happy"}`,
			want:    &SaveMoodMessage{},
		},
		{name: "save mood blank name", message: `{"type":"save_mood","name":"  "}`, wantErr: true},
		{name: "delete mood", message: `{"type":"delete_mood","name":"smug"}`, want: &DeleteMoodMessage{}},
		{name: "delete mood without name", message: `{"type":"delete_mood"}`, wantErr: true},
		{
			name:    "media response",
			message: `{"type":"media_response","request_id":"r1","granted":false,"error":"unsupported"}`,
			want:    &MediaResponseMessage{},
		},
		{name: "media response without id", message: `{"type":"media_response","granted":true}`, wantErr: true},
		{name: "ping", message: `{"type":"ping","data":"x"}`, want: &PingMessage{}},
		{name: "server message type", message: `{"type":"play_audio"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if fmt.Sprintf("%T", got) != fmt.Sprintf("%T", tt.want) {
				t.Errorf("Expected %T, got %T", tt.want, got)
			}
		})
	}
}

func TestMessageValidator_Fields(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type":"save_mood","name":"smug","eye_base":"skeptical","mouth_base":"happy"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	mood := result.(*SaveMoodMessage)
	if mood.Name != "smug" || mood.EyeBase != entities.ExpressionSkeptical || mood.MouthBase != entities.ExpressionHappy {
		t.Errorf("Unexpected mood %+v", mood)
	}

	result, err = validator.ValidateMessage([]byte(`{"type":"media_response","request_id":"r1","granted":false,"error":"unsupported"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	resp := result.(*MediaResponseMessage)
	if resp.RequestID != "r1" || resp.Granted || resp.Error != MediaErrorUnsupported {
		t.Errorf("Unexpected media response %+v", resp)
	}
}

func TestMessageValidator_InvalidJSON(t *testing.T) {
	validator := NewMessageValidator()

	invalidMessages := []string{
		`{invalid json}`,
		`{"type": "touch", "region":}`,
		``,
		`null`,
		`{"type": }`,
	}

	for i, msg := range invalidMessages {
		t.Run(fmt.Sprintf("invalid_json_%d", i), func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(msg))
			if err == nil {
				t.Errorf("Expected error for invalid JSON, got nil")
			}
		})
	}
}

func TestParseBinaryFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantTag byte
		wantLen int
		wantErr bool
	}{
		{name: "microphone", data: []byte{FrameMicrophone, 0, 0, 0, 0, 0, 0, 128, 63}, wantTag: FrameMicrophone, wantLen: 8},
		{name: "camera", data: []byte{FrameCamera, 0xff, 0xd8}, wantTag: FrameCamera, wantLen: 2},
		{name: "screen", data: []byte{FrameScreen, 0xff}, wantTag: FrameScreen, wantLen: 1},
		{name: "empty", data: nil, wantErr: true},
		{name: "tag only", data: []byte{FrameCamera}, wantErr: true},
		{name: "partial sample", data: []byte{FrameMicrophone, 0, 0, 0}, wantErr: true},
		{name: "unknown tag", data: []byte{0x09, 1, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, payload, err := ParseBinaryFrame(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBinaryFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tag != tt.wantTag || len(payload) != tt.wantLen {
				t.Errorf("Got tag 0x%02x with %d bytes, want 0x%02x with %d", tag, len(payload), tt.wantTag, tt.wantLen)
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errorMsg := CreateErrorMessage("connect_failed", "Could not connect", true)

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != "connect_failed" || errorMsg.Message != "Could not connect" || !errorMsg.Retryable {
		t.Errorf("Unexpected error message %+v", errorMsg)
	}

	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > 2*time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestCreatePongMessage(t *testing.T) {
	data := "test-pong-data"
	pongMsg := CreatePongMessage(data)

	if pongMsg.Type != MessageTypePong {
		t.Errorf("Expected type %s, got %s", MessageTypePong, pongMsg.Type)
	}
	if pongMsg.Data != data {
		t.Errorf("Expected data %s, got %s", data, pongMsg.Data)
	}
}

package audio

import (
	"encoding/base64"
	"math"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -1, 0.999, -0.123456, 1e-5}

	blob := EncodeFrame(samples, 16000)
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("Expected MIME type audio/pcm;rate=16000, got %s", blob.MIMEType)
	}

	raw, err := DecodeBase64(blob.Data)
	if err != nil {
		t.Fatalf("Failed to decode base64: %v", err)
	}
	if len(raw) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(raw))
	}

	buf := DecodeWire(raw, 16000, 1)
	if buf.Frames() != len(samples) {
		t.Fatalf("Expected %d frames, got %d", len(samples), buf.Frames())
	}
	for i, s := range samples {
		if diff := math.Abs(float64(buf.Channels[0][i] - s)); diff > 1.0/32768 {
			t.Errorf("Sample %d: expected %f, got %f (diff %g)", i, s, buf.Channels[0][i], diff)
		}
	}
}

func TestEncodePCM_LittleEndian(t *testing.T) {
	out := EncodePCM([]float32{0.5, -0.5})

	// 0.5 * 32768 = 16384 = 0x4000, -16384 = 0xC000
	expected := []byte{0x00, 0x40, 0x00, 0xC0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("Byte %d: expected 0x%02X, got 0x%02X", i, expected[i], out[i])
		}
	}
}

func TestEncodePCM_OutOfRangeWraps(t *testing.T) {
	// 1.0 scales to 32768, which does not fit in int16 and wraps to -32768
	out := EncodePCM([]float32{1.0})
	buf := DecodeWire(out, 16000, 1)
	if buf.Channels[0][0] != -1 {
		t.Errorf("Expected wrapped sample -1, got %f", buf.Channels[0][0])
	}
}

func TestDecodeWire_Stereo(t *testing.T) {
	// L=0.5 R=-0.5, L=0.25 R=0, plus one dangling byte
	data := append(EncodePCM([]float32{0.5, -0.5, 0.25, 0}), 0x7F)

	buf := DecodeWire(data, 24000, 2)
	if len(buf.Channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(buf.Channels))
	}
	if buf.Frames() != 2 {
		t.Fatalf("Expected 2 frames, got %d", buf.Frames())
	}
	if buf.Channels[0][0] != 0.5 || buf.Channels[1][0] != -0.5 || buf.Channels[0][1] != 0.25 || buf.Channels[1][1] != 0 {
		t.Errorf("Unexpected de-interleaved samples: %v", buf.Channels)
	}
}

func TestDecodeWire_TruncatesPartialFrame(t *testing.T) {
	buf := DecodeWire([]byte{0x00, 0x40, 0x00}, 24000, 1)
	if buf.Frames() != 1 {
		t.Errorf("Expected 1 frame, got %d", buf.Frames())
	}

	empty := DecodeWire(nil, 24000, 1)
	if empty.Frames() != 0 {
		t.Errorf("Expected empty buffer, got %d frames", empty.Frames())
	}
}

func TestBuffer_Duration(t *testing.T) {
	buf := &Buffer{Channels: [][]float32{make([]float32, 12000)}, SampleRate: 24000}
	if buf.Seconds() != 0.5 {
		t.Errorf("Expected 0.5s, got %f", buf.Seconds())
	}
	if buf.Duration().Milliseconds() != 500 {
		t.Errorf("Expected 500ms, got %v", buf.Duration())
	}
}

func TestFloat32FromBytes(t *testing.T) {
	samples := []float32{0.1, -0.75, 1}
	raw := append(Float32ToBytes(samples), 0x01, 0x02)

	got := Float32FromBytes(raw)
	if len(got) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, samples[i], got[i])
		}
	}
}

func TestEncodeBuffer_Interleaves(t *testing.T) {
	buf := &Buffer{
		Channels:   [][]float32{{0.5, 0.25}, {-0.5, 0}},
		SampleRate: 24000,
	}

	blob := EncodeBuffer(buf)
	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	back := DecodeWire(raw, 24000, 2)
	if back.Channels[0][1] != 0.25 || back.Channels[1][0] != -0.5 {
		t.Errorf("Unexpected channels after interleave: %v", back.Channels)
	}
}

func TestEnergy(t *testing.T) {
	frame := []float32{0.5, -0.5, 0.5, -0.5}

	if got := MeanAbsAmplitude(frame); got != 0.5 {
		t.Errorf("Expected mean abs 0.5, got %f", got)
	}
	if got := RMS(frame); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected RMS 0.5, got %f", got)
	}
	if MeanAbsAmplitude(nil) != 0 || RMS(nil) != 0 {
		t.Error("Expected zero energy for empty frame")
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		mime     string
		expected int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm;rate=22050;channels=1", 22050},
		{"audio/pcm", 24000},
		{"audio/pcm;rate=abc", 24000},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := ParseSampleRate(tt.mime, 24000); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

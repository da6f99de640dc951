package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

const pcmScale = 32768.0

// Buffer holds decoded audio, one float32 slice per channel
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the number of samples per channel
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// PCMMimeType returns the MIME type the voice service expects for raw PCM
func PCMMimeType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// EncodeFrame converts float samples to 16-bit little-endian PCM wrapped in a
// base64 blob. Samples are scaled by 32768 and rounded; values outside
// [-1, 1) wrap around instead of clamping.
func EncodeFrame(samples []float32, sampleRate int) entities.Blob {
	return entities.Blob{
		Data:     base64.StdEncoding.EncodeToString(EncodePCM(samples)),
		MIMEType: PCMMimeType(sampleRate),
	}
}

// EncodePCM converts float samples to 16-bit little-endian PCM bytes
func EncodePCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(int32(math.Round(float64(s) * pcmScale)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodeBuffer interleaves a buffer back into 16-bit PCM for playback
func EncodeBuffer(buf *Buffer) entities.Blob {
	channels := len(buf.Channels)
	frames := buf.Frames()
	interleaved := make([]float32, 0, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			interleaved = append(interleaved, buf.Channels[ch][i])
		}
	}
	return EncodeFrame(interleaved, buf.SampleRate)
}

// DecodeWire reads interleaved 16-bit little-endian PCM into a float buffer.
// A trailing partial frame is dropped.
func DecodeWire(data []byte, sampleRate, channels int) *Buffer {
	if channels <= 0 {
		channels = 1
	}
	frames := len(data) / (2 * channels)

	buf := &Buffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[ch][i] = float32(sample) / pcmScale
		}
	}
	return buf
}

// DecodeBase64 decodes a base64 payload
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 encodes bytes for text transport
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Float32FromBytes reads little-endian float32 samples as sent by the face
// client microphone. Trailing bytes that do not form a sample are ignored.
func Float32FromBytes(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Float32ToBytes is the inverse of Float32FromBytes
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// MeanAbsAmplitude returns the mean absolute sample value, in [0, 1] for
// normalised input.
func MeanAbsAmplitude(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

// RMS returns the root-mean-square energy of the samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ParseSampleRate extracts the rate parameter from an audio/pcm MIME type,
// returning fallback when absent.
func ParseSampleRate(mimeType string, fallback int) int {
	_, params, ok := strings.Cut(mimeType, "rate=")
	if !ok {
		return fallback
	}
	params, _, _ = strings.Cut(params, ";")
	rate, err := strconv.Atoi(strings.TrimSpace(params))
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

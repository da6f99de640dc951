package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/audio"
	"github.com/satriahrh/wajah/internal/metrics"
)

const (
	defaultMediaTimeout = 20 * time.Second
	micFrameBuffer      = 64
)

// sender queues a JSON message for the face client. It reports false when the
// client is gone or its queue is full.
type sender interface {
	sendJSON(msgType MessageType, v interface{}) bool
}

// mediaDevices is the server side of the capture and playback graphs of one
// face client. Capture starts with a media_request the client must grant;
// captured data then arrives as tagged binary frames.
type mediaDevices struct {
	out     sender
	timeout time.Duration
	logger  *zap.Logger
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	pending map[string]chan *MediaResponseMessage
	mic     *micInput
	video   map[entities.VisionSource]*videoSource
}

var _ repositories.MediaDevices = (*mediaDevices)(nil)

func newMediaDevices(out sender, timeout time.Duration, logger *zap.Logger) *mediaDevices {
	if timeout <= 0 {
		timeout = defaultMediaTimeout
	}
	return &mediaDevices{
		out:     out,
		timeout: timeout,
		logger:  logger,
		closed:  make(chan struct{}),
		pending: make(map[string]chan *MediaResponseMessage),
		video:   make(map[entities.VisionSource]*videoSource),
	}
}

// OpenMicrophone asks the client for its microphone at sampleRate
func (m *mediaDevices) OpenMicrophone(ctx context.Context, sampleRate int) (repositories.AudioInput, error) {
	if err := m.request(ctx, MediaMicrophone, sampleRate); err != nil {
		return nil, err
	}

	mic := &micInput{
		devices:    m,
		sampleRate: sampleRate,
		frames:     make(chan []float32, micFrameBuffer),
	}
	m.mu.Lock()
	previous := m.mic
	m.mic = mic
	m.mu.Unlock()
	if previous != nil {
		previous.shut()
	}
	return mic, nil
}

// OpenOutput needs no permission; the clock starts now
func (m *mediaDevices) OpenOutput(ctx context.Context, sampleRate int) (repositories.AudioOutput, error) {
	select {
	case <-m.closed:
		return nil, domain.ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &audioOutput{
		out:        m.out,
		sampleRate: sampleRate,
		clock:      audio.NewSystemClock(),
	}, nil
}

// OpenVideo asks the client to share its camera or screen
func (m *mediaDevices) OpenVideo(ctx context.Context, source entities.VisionSource) (repositories.VideoSource, error) {
	if source != entities.VisionCamera && source != entities.VisionScreen {
		return nil, fmt.Errorf("vision source %q: %w", source, domain.ErrNotSupported)
	}
	if err := m.request(ctx, string(source), 0); err != nil {
		return nil, err
	}

	video := &videoSource{devices: m, source: source}
	m.mu.Lock()
	m.video[source] = video
	m.mu.Unlock()
	return video, nil
}

func (m *mediaDevices) request(ctx context.Context, kind string, sampleRate int) error {
	id := uuid.New().String()
	answer := make(chan *MediaResponseMessage, 1)

	m.mu.Lock()
	m.pending[id] = answer
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	msg := &MediaRequestMessage{
		BaseMessage: newBase(MessageTypeMediaRequest),
		RequestID:   id,
		Kind:        kind,
		SampleRate:  sampleRate,
	}
	if !m.out.sendJSON(MessageTypeMediaRequest, msg) {
		return fmt.Errorf("failed to request %s: %w", kind, domain.ErrNotConnected)
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case resp := <-answer:
		if resp.Granted {
			return nil
		}
		if resp.Error == MediaErrorUnsupported {
			return fmt.Errorf("%s: %w", kind, domain.ErrNotSupported)
		}
		return fmt.Errorf("%s: %w", kind, domain.ErrPermissionDenied)
	case <-timer.C:
		return fmt.Errorf("%s: %w", kind, domain.ErrMediaTimeout)
	case <-m.closed:
		return fmt.Errorf("%s: %w", kind, domain.ErrNotConnected)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve hands a media_response to the request waiting for it
func (m *mediaDevices) resolve(resp *MediaResponseMessage) bool {
	m.mu.Lock()
	answer, ok := m.pending[resp.RequestID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case answer <- resp:
	default:
	}
	return true
}

// handleFrame routes one parsed binary frame to the open capture it belongs to
func (m *mediaDevices) handleFrame(tag byte, payload []byte) {
	switch tag {
	case FrameMicrophone:
		m.mu.Lock()
		mic := m.mic
		m.mu.Unlock()
		if mic == nil {
			m.logger.Debug("Dropping microphone frame without an open microphone")
			return
		}
		mic.push(audio.Float32FromBytes(payload))
		metrics.MicFrames.WithLabelValues("received").Inc()

	case FrameCamera, FrameScreen:
		source := entities.VisionCamera
		if tag == FrameScreen {
			source = entities.VisionScreen
		}
		m.mu.Lock()
		video := m.video[source]
		m.mu.Unlock()
		if video == nil {
			m.logger.Debug("Dropping video frame without an open source", zap.String("source", string(source)))
			return
		}
		frame := make([]byte, len(payload))
		copy(frame, payload)
		video.set(frame)
	}
}

// shutdown fails pending requests and ends every open capture
func (m *mediaDevices) shutdown() {
	m.once.Do(func() { close(m.closed) })

	m.mu.Lock()
	mic := m.mic
	m.mic = nil
	m.video = make(map[entities.VisionSource]*videoSource)
	m.mu.Unlock()
	if mic != nil {
		mic.shut()
	}
}

func (m *mediaDevices) release(kind string) {
	m.out.sendJSON(MessageTypeMediaRelease, &MediaReleaseMessage{
		BaseMessage: newBase(MessageTypeMediaRelease),
		Kind:        kind,
	})
}

type micInput struct {
	devices    *mediaDevices
	sampleRate int
	frames     chan []float32

	mu     sync.Mutex
	closed bool
}

func (i *micInput) Frames() <-chan []float32 { return i.frames }

func (i *micInput) SampleRate() int { return i.sampleRate }

func (i *micInput) push(frame []float32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	select {
	case i.frames <- frame:
	default:
		metrics.MicFrames.WithLabelValues("overflow").Inc()
	}
}

// shut closes the frame channel once
func (i *micInput) shut() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return false
	}
	i.closed = true
	close(i.frames)
	return true
}

func (i *micInput) Close() error {
	if !i.shut() {
		return nil
	}
	m := i.devices
	m.mu.Lock()
	if m.mic == i {
		m.mic = nil
	}
	m.mu.Unlock()
	m.release(MediaMicrophone)
	return nil
}

type videoSource struct {
	devices *mediaDevices
	source  entities.VisionSource

	mu     sync.Mutex
	frame  []byte
	closed bool
}

func (v *videoSource) set(frame []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.frame = frame
	}
}

func (v *videoSource) LatestFrame() ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame, v.frame != nil
}

func (v *videoSource) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.frame = nil
	v.mu.Unlock()

	m := v.devices
	m.mu.Lock()
	if m.video[v.source] == v {
		delete(m.video, v.source)
	}
	m.mu.Unlock()
	m.release(string(v.source))
	return nil
}

// audioOutput forwards scheduled chunks to the client, which plays each one
// at StartAt on its own timeline anchored at the first chunk it receives.
type audioOutput struct {
	out        sender
	sampleRate int
	clock      *audio.SystemClock

	mu     sync.Mutex
	closed bool
}

var errOutputClosed = errors.New("audio output is closed")

func (o *audioOutput) Now() float64 {
	return o.clock.Now()
}

func (o *audioOutput) Play(id string, startAt float64, pcm entities.Blob, channels int) error {
	if o.isClosed() {
		return errOutputClosed
	}
	msg := &PlayAudioMessage{
		BaseMessage: newBase(MessageTypePlayAudio),
		ID:          id,
		StartAt:     startAt,
		Channels:    channels,
		SampleRate:  audio.ParseSampleRate(pcm.MIMEType, o.sampleRate),
		Data:        pcm.Data,
		MIMEType:    pcm.MIMEType,
	}
	if !o.out.sendJSON(MessageTypePlayAudio, msg) {
		return fmt.Errorf("failed to send audio chunk %s: %w", id, domain.ErrNotConnected)
	}
	return nil
}

func (o *audioOutput) Stop(id string) error {
	if o.isClosed() {
		return nil
	}
	o.out.sendJSON(MessageTypeStopAudio, &StopAudioMessage{BaseMessage: newBase(MessageTypeStopAudio), ID: id})
	return nil
}

func (o *audioOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()
	o.out.sendJSON(MessageTypeStopAudio, &StopAudioMessage{BaseMessage: newBase(MessageTypeStopAudio)})
	return nil
}

func (o *audioOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

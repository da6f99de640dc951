package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
)

// journal records cross-component calls in order
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) index(entry string) int {
	for i, e := range j.snapshot() {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeSession struct {
	journal *journal
	events  chan *repositories.ServerEvent
	errs    chan error
	results chan []repositories.ToolResult

	mu     sync.Mutex
	audio  int
	images int
	closed int
}

func newFakeSession(j *journal) *fakeSession {
	return &fakeSession{
		journal: j,
		events:  make(chan *repositories.ServerEvent, 16),
		errs:    make(chan error, 1),
		results: make(chan []repositories.ToolResult, 16),
	}
}

func (s *fakeSession) SendAudio(blob entities.Blob) error {
	s.mu.Lock()
	s.audio++
	s.mu.Unlock()
	s.journal.add("send_audio")
	return nil
}

func (s *fakeSession) SendImage(blob entities.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images++
	return nil
}

func (s *fakeSession) SendToolResults(results []repositories.ToolResult) error {
	s.results <- results
	return nil
}

func (s *fakeSession) Receive(ctx context.Context) (*repositories.ServerEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.errs:
		return nil, err
	case ev := <-s.events:
		return ev, nil
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) counts() (audio, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio, s.closed
}

type fakeVoice struct {
	session *fakeSession
	err     error
	gate    chan struct{}

	mu      sync.Mutex
	configs []repositories.SessionConfig
}

func (v *fakeVoice) Connect(ctx context.Context, config repositories.SessionConfig) (repositories.LiveSession, error) {
	v.mu.Lock()
	v.configs = append(v.configs, config)
	v.mu.Unlock()
	if v.gate != nil {
		select {
		case <-v.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.err != nil {
		return nil, v.err
	}
	return v.session, nil
}

func (v *fakeVoice) lastConfig() repositories.SessionConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.configs[len(v.configs)-1]
}

type fakeMic struct {
	frames chan []float32
	mu     sync.Mutex
	closed int
}

func (m *fakeMic) Frames() <-chan []float32 { return m.frames }
func (m *fakeMic) SampleRate() int          { return 16000 }

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

type fakeOutput struct {
	journal *journal
	mu      sync.Mutex
	played  int
	stopped int
	closed  int
}

func (o *fakeOutput) Now() float64 { return 0 }

func (o *fakeOutput) Play(id string, startAt float64, pcm entities.Blob, channels int) error {
	o.mu.Lock()
	o.played++
	o.mu.Unlock()
	o.journal.add("play")
	return nil
}

func (o *fakeOutput) Stop(id string) error {
	o.mu.Lock()
	o.stopped++
	o.mu.Unlock()
	o.journal.add("stop")
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

type fakeVideo struct{}

func (fakeVideo) LatestFrame() ([]byte, bool) { return nil, false }
func (fakeVideo) Close() error                { return nil }

type fakeDevices struct {
	mic      *fakeMic
	output   *fakeOutput
	micErr   error
	videoErr error

	mu          sync.Mutex
	outputsOpen int
}

func (d *fakeDevices) OpenMicrophone(ctx context.Context, rate int) (repositories.AudioInput, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

func (d *fakeDevices) OpenOutput(ctx context.Context, rate int) (repositories.AudioOutput, error) {
	d.mu.Lock()
	d.outputsOpen++
	d.mu.Unlock()
	return d.output, nil
}

func (d *fakeDevices) OpenVideo(ctx context.Context, source entities.VisionSource) (repositories.VideoSource, error) {
	if d.videoErr != nil {
		return nil, d.videoErr
	}
	return fakeVideo{}, nil
}

type publishedError struct {
	code      string
	retryable bool
}

type fakePresenter struct {
	mu          sync.Mutex
	states      []entities.FaceState
	transcripts []entities.TranscriptLine
	errors      []publishedError
	urls        []string
}

func (p *fakePresenter) PublishState(state entities.FaceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *fakePresenter) PublishTranscript(line entities.TranscriptLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, line)
}

func (p *fakePresenter) PublishError(code, message string, retryable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, publishedError{code: code, retryable: retryable})
}

func (p *fakePresenter) OpenURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
}

func (p *fakePresenter) lastError() (publishedError, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errors) == 0 {
		return publishedError{}, false
	}
	return p.errors[len(p.errors)-1], true
}

func (p *fakePresenter) transcriptLines() []entities.TranscriptLine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entities.TranscriptLine(nil), p.transcripts...)
}

type fakePreferences struct {
	mu       sync.Mutex
	moods    map[string]entities.CustomExpressions
	settings map[string]entities.VoiceSettings
}

func newFakePreferences() *fakePreferences {
	return &fakePreferences{
		moods:    make(map[string]entities.CustomExpressions),
		settings: make(map[string]entities.VoiceSettings),
	}
}

func (p *fakePreferences) LoadExpressions(ctx context.Context, deviceID string) (entities.CustomExpressions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moods[deviceID].Clone(), nil
}

func (p *fakePreferences) SaveExpressions(ctx context.Context, deviceID string, e entities.CustomExpressions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moods[deviceID] = e.Clone()
	return nil
}

func (p *fakePreferences) LoadVoiceSettings(ctx context.Context, deviceID string) (entities.VoiceSettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.settings[deviceID]; ok {
		return s, nil
	}
	return entities.DefaultVoiceSettings(), nil
}

func (p *fakePreferences) SaveVoiceSettings(ctx context.Context, deviceID string, s entities.VoiceSettings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings[deviceID] = s
	return nil
}

type fakeImages struct {
	release chan struct{}
	err     error
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (entities.Blob, error) {
	<-f.release
	if f.err != nil {
		return entities.Blob{}, f.err
	}
	return entities.Blob{Data: "aW1n", MIMEType: "image/png"}, nil
}

// harness wires a conversation to fakes and runs its loop
type harness struct {
	t         *testing.T
	journal   *journal
	session   *fakeSession
	voice     *fakeVoice
	mic       *fakeMic
	output    *fakeOutput
	devices   *fakeDevices
	presenter *fakePresenter
	prefs     *fakePreferences
	conv      *ConversationService
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, opts ...func(*harness, *ConversationDeps)) *harness {
	t.Helper()
	j := &journal{}
	h := &harness{
		t:         t,
		journal:   j,
		session:   newFakeSession(j),
		mic:       &fakeMic{frames: make(chan []float32, 16)},
		output:    &fakeOutput{journal: j},
		presenter: &fakePresenter{},
		prefs:     newFakePreferences(),
	}
	h.voice = &fakeVoice{session: h.session}
	h.devices = &fakeDevices{mic: h.mic, output: h.output}

	deps := ConversationDeps{
		DeviceID:    "device-1",
		Voice:       h.voice,
		Devices:     h.devices,
		Preferences: h.prefs,
		Presenter:   h.presenter,
		Logger:      testLogger(t),
	}
	for _, opt := range opts {
		opt(h, &deps)
	}

	h.conv = NewConversationService(deps, ConversationConfig{
		HangoverFrames:   2,
		ReactionDuration: 100 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.conv.Run(ctx)

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.conv.Done():
		case <-time.After(2 * time.Second):
			t.Error("Conversation loop did not stop")
		}
	})
	return h
}

func (h *harness) wakeActive() {
	h.t.Helper()
	if err := h.conv.Wake(); err != nil {
		h.t.Fatalf("Wake failed: %v", err)
	}
	waitFor(h.t, "session active", func() bool {
		return h.conv.State() == entities.SessionStateActive
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func loudFrame() []float32 {
	frame := make([]float32, 160)
	for i := range frame {
		frame[i] = 0.3
	}
	return frame
}

// speech returns seconds of 24 kHz mono PCM
func speech(seconds float64) []byte {
	return make([]byte, int(seconds*24000)*2)
}

// testLogger is a no-op logger; conversation goroutines may still log after
// a test returned.
func testLogger(t *testing.T) *zap.Logger {
	return zap.NewNop()
}

var errBoom = errors.New("boom")

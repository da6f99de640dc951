package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/audio"
	"github.com/satriahrh/wajah/internal/metrics"
	"github.com/satriahrh/wajah/internal/saga"
	"github.com/satriahrh/wajah/internal/saga/wake"
	"github.com/satriahrh/wajah/internal/sandbox"
	"github.com/satriahrh/wajah/internal/vision"
)

// Error codes published to the face client
const (
	ErrorCodePermissionDenied = "permission_denied"
	ErrorCodeConnectFailed    = "connect_failed"
	ErrorCodeConnectionLost   = "connection_lost"
	ErrorCodeInvalidRequest   = "invalid_request"
)

// toolQueueSize bounds the tool batches waiting behind the one running
const toolQueueSize = 32

// ConversationConfig tunes one conversation
type ConversationConfig struct {
	VoiceName        string
	InputSampleRate  int
	OutputSampleRate int
	HangoverFrames   int
	MemoryBankLimit  int
	ConnectTimeout   time.Duration
	ReactionDuration time.Duration
	BoredomInterval  time.Duration
	BoredomMax       int
	MicLevelInterval time.Duration
	ScriptTimeout    time.Duration
	Vision           vision.Config
	// Actions maps an action name to a URL template with one %s for the
	// escaped query.
	Actions map[string]string
}

func (c *ConversationConfig) withDefaults() {
	if c.VoiceName == "" {
		c.VoiceName = "Puck"
	}
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = wake.DefaultInputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = wake.DefaultOutputSampleRate
	}
	if c.HangoverFrames <= 0 {
		c.HangoverFrames = audio.DefaultHangoverFrames
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = wake.DefaultTimeout
	}
	if c.ReactionDuration <= 0 {
		c.ReactionDuration = 1500 * time.Millisecond
	}
	if c.BoredomInterval <= 0 {
		c.BoredomInterval = time.Minute
	}
	if c.BoredomMax <= 0 {
		c.BoredomMax = 10
	}
	if c.MicLevelInterval <= 0 {
		c.MicLevelInterval = 100 * time.Millisecond
	}
	if c.Actions == nil {
		c.Actions = DefaultActions()
	}
}

// ConversationDeps are the collaborators of a conversation. Sessions and
// Images are optional.
type ConversationDeps struct {
	DeviceID    string
	Voice       repositories.VoiceService
	Devices     repositories.MediaDevices
	Preferences repositories.PreferenceStore
	Sessions    repositories.SessionRepository
	Images      repositories.ImageGenerator
	Presenter   Presenter
	Sagas       *saga.Manager
	Logger      *zap.Logger
}

// ConversationService drives one face: it connects to the voice service on
// wake, gates microphone audio, schedules synthesized speech, dispatches tool
// calls and keeps the face state the client renders. All state is owned by
// the goroutine running Run; every other goroutine posts closures to it.
type ConversationService struct {
	deviceID    string
	voice       repositories.VoiceService
	devices     repositories.MediaDevices
	preferences repositories.PreferenceStore
	sessions    repositories.SessionRepository
	images      repositories.ImageGenerator
	presenter   Presenter
	sagas       *saga.Manager
	dispatcher  *ToolDispatcher
	scripts     *sandbox.Runner
	config      ConversationConfig
	logger      *zap.Logger

	events  chan func()
	done    chan struct{}
	runCtx  context.Context
	records chan entities.Session

	// stopped is set once the loop has exited; post refuses new work after it
	stopMu  sync.RWMutex
	stopped bool

	// owned by the loop
	face          *Face
	state         entities.SessionState
	generation    int
	connectCancel context.CancelFunc
	pumpCancel    context.CancelFunc
	toolCalls     chan []repositories.ToolInvocation
	session       repositories.LiveSession
	mic           repositories.AudioInput
	output        repositories.AudioOutput
	scheduler     *audio.Scheduler
	gate          *audio.Gate
	sampler       *vision.Sampler
	record        *entities.Session
	lastMicLevel  time.Time
	reactionSeq   int
}

// NewConversationService creates a conversation. Run must be started before
// any other method is called.
func NewConversationService(deps ConversationDeps, config ConversationConfig) *ConversationService {
	config.withDefaults()
	logger := deps.Logger.With(zap.String("deviceID", deps.DeviceID))
	if deps.Sagas == nil {
		deps.Sagas = saga.NewManager(logger)
		deps.Sagas.Observe(func(e saga.Event) {
			metrics.SagaEvents.WithLabelValues(e.Definition, e.Type).Inc()
		})
	}

	c := &ConversationService{
		deviceID:    deps.DeviceID,
		voice:       deps.Voice,
		devices:     deps.Devices,
		preferences: deps.Preferences,
		sessions:    deps.Sessions,
		images:      deps.Images,
		presenter:   deps.Presenter,
		sagas:       deps.Sagas,
		dispatcher:  NewToolDispatcher(logger),
		scripts:     sandbox.NewRunner(config.ScriptTimeout, logger),
		config:      config,
		logger:      logger,
		events:      make(chan func(), 256),
		records:     make(chan entities.Session, 16),
		done:        make(chan struct{}),
		face:        NewFace(config.MemoryBankLimit),
		state:       entities.SessionStateDisconnected,
	}
	c.registerTools()
	return c
}

// Run loads preferences and processes events until ctx is done, then tears
// the session down.
func (c *ConversationService) Run(ctx context.Context) error {
	c.runCtx = ctx

	if c.sessions != nil {
		go c.recordWriter()
		defer close(c.records)
	}

	c.loadPreferences(ctx)
	c.flush()

	boredom := time.NewTicker(c.config.BoredomInterval)
	defer boredom.Stop()

	for {
		select {
		case <-ctx.Done():
			c.teardown("shutdown")
			c.stop()
			c.flush()
			return ctx.Err()
		case fn := <-c.events:
			fn()
			c.flush()
		case <-boredom.C:
			if c.state == entities.SessionStateDisconnected && c.face.Status() == entities.StatusIdle {
				c.face.IncreaseBoredom(c.config.BoredomMax)
			}
			c.flush()
		}
	}
}

// Done is closed once the loop has stopped taking work
func (c *ConversationService) Done() <-chan struct{} {
	return c.done
}

// stop closes done, refuses further posts and runs whatever was queued
// before that, so no posted closure is silently lost.
func (c *ConversationService) stop() {
	close(c.done)
	c.stopMu.Lock()
	c.stopped = true
	c.stopMu.Unlock()

	for {
		select {
		case fn := <-c.events:
			fn()
		default:
			return
		}
	}
}

// post queues fn on the loop. It reports false when the loop has stopped, in
// which case fn never runs.
func (c *ConversationService) post(fn func()) bool {
	c.stopMu.RLock()
	defer c.stopMu.RUnlock()
	if c.stopped {
		return false
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// do runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (c *ConversationService) do(fn func()) bool {
	ran := make(chan struct{})
	if !c.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		return false
	}
}

func (c *ConversationService) flush() {
	if c.face.TakeDirty() {
		c.presenter.PublishState(c.face.Snapshot())
	}
}

// Wake starts connecting to the voice service. It returns once the attempt is
// under way; the outcome is published as state. An active session is torn
// down first.
func (c *ConversationService) Wake() error {
	err := domain.ErrNotConnected
	c.do(func() { err = c.wake() })
	return err
}

func (c *ConversationService) wake() error {
	if c.runCtx.Err() != nil {
		return domain.ErrNotConnected
	}
	switch c.state {
	case entities.SessionStateConnecting, entities.SessionStateClosing:
		return domain.ErrBusy
	case entities.SessionStateActive:
		c.teardown("rewake")
	}

	c.setState(entities.SessionStateConnecting)
	c.face.ResetBoredom()
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(c.runCtx)
	c.connectCancel = cancel

	c.record = entities.NewSession(c.deviceID)
	c.persistSession()

	def := &wake.Definition{
		Devices:          c.devices,
		Voice:            c.voice,
		Session:          c.sessionConfig(),
		InputSampleRate:  c.config.InputSampleRate,
		OutputSampleRate: c.config.OutputSampleRate,
		Deadline:         c.config.ConnectTimeout,
		Logger:           c.logger,
	}

	go func() {
		data := saga.Data{}
		_, err := c.sagas.Run(ctx, def, data)
		if !c.post(func() { c.onWakeResult(gen, data, err) }) {
			releaseWakeData(data, c.logger)
		}
	}()

	c.logger.Info("Waking up")
	return nil
}

func (c *ConversationService) onWakeResult(gen int, data saga.Data, err error) {
	if gen != c.generation || c.state != entities.SessionStateConnecting {
		releaseWakeData(data, c.logger)
		return
	}
	// the saga has returned; its context only covered connecting
	c.connectCancel()
	c.connectCancel = nil

	if err != nil {
		code := ErrorCodeConnectFailed
		message := "Could not reach the voice service. Tap to try again."
		if errors.Is(err, domain.ErrPermissionDenied) {
			code = ErrorCodePermissionDenied
			message = "Microphone access was denied. Allow it and tap to try again."
		}
		metrics.WakeAttempts.WithLabelValues(code).Inc()
		c.logger.Warn("Wake failed", zap.Error(err))
		c.endRecord(code)
		c.setState(entities.SessionStateDisconnected)
		c.presenter.PublishError(code, message, true)
		return
	}

	c.session = wake.Session(data)
	c.mic = wake.Microphone(data)
	c.output = wake.Output(data)

	c.scheduler = audio.NewScheduler(outputSink{c.output}, outputClock{c.output}, c.face, func(fn func()) {
		c.post(func() {
			if gen == c.generation {
				fn()
			}
		})
	}, c.logger)
	c.gate = audio.NewGate(c.face, audio.InterrupterFunc(c.interrupt), c.config.HangoverFrames)
	c.sampler = vision.NewSampler(c.devices, c.session, c.config.Vision, c.logger)

	pumpCtx, cancel := context.WithCancel(c.runCtx)
	c.pumpCancel = cancel
	c.toolCalls = make(chan []repositories.ToolInvocation, toolQueueSize)
	go c.micPump(pumpCtx, gen, c.mic)
	go c.receivePump(pumpCtx, gen, c.session)
	go c.toolWorker(pumpCtx, c.session, c.toolCalls)

	metrics.WakeAttempts.WithLabelValues("ok").Inc()
	metrics.ActiveSessions.Inc()
	c.record.Activate()
	c.persistSession()
	c.setState(entities.SessionStateActive)
	c.logger.Info("Conversation active", zap.String("sessionID", c.record.ID))
}

// Sleep ends the conversation. It is safe to call in any state.
func (c *ConversationService) Sleep() {
	c.do(func() { c.teardown("user") })
}

// teardown releases every session resource. It is idempotent.
func (c *ConversationService) teardown(reason string) {
	if c.connectCancel != nil {
		c.connectCancel()
		c.connectCancel = nil
	}
	wasActive := c.state == entities.SessionStateActive
	if c.state == entities.SessionStateDisconnected && c.session == nil && c.mic == nil && c.output == nil {
		return
	}

	c.setState(entities.SessionStateClosing)
	c.generation++

	if c.sampler != nil {
		c.sampler.Close()
		c.sampler = nil
	}
	if c.scheduler != nil {
		c.scheduler.StopAll()
		c.scheduler = nil
	}
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	c.toolCalls = nil
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Debug("Failed to close voice session", zap.Error(err))
		}
		c.session = nil
	}
	if c.mic != nil {
		if err := c.mic.Close(); err != nil {
			c.logger.Debug("Failed to close microphone", zap.Error(err))
		}
		c.mic = nil
	}
	if c.output != nil {
		if err := c.output.Close(); err != nil {
			c.logger.Debug("Failed to close audio output", zap.Error(err))
		}
		c.output = nil
	}
	c.gate = nil

	c.face.SetStatus(entities.StatusIdle)
	c.face.SetVision(entities.VisionNone)
	c.face.SetMicLevel(0)
	c.face.Transcript().CloseTurn()

	if wasActive {
		metrics.ActiveSessions.Dec()
		metrics.SessionEnds.WithLabelValues(reason).Inc()
	}
	c.endRecord(reason)
	c.setState(entities.SessionStateDisconnected)
	c.logger.Info("Conversation ended", zap.String("reason", reason))
}

func (c *ConversationService) setState(state entities.SessionState) {
	c.state = state
	c.face.SetSessionState(state)
}

// interrupt is the barge-in path: playback stops at once and the visuals of
// the interrupted turn are cleared.
func (c *ConversationService) interrupt() {
	if c.scheduler != nil {
		c.scheduler.StopAll()
	}
	c.face.ClearThought()
	c.face.ResetExpression()
	metrics.BargeIns.Inc()
}

func (c *ConversationService) micPump(ctx context.Context, gen int, mic repositories.AudioInput) {
	frames := mic.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if !c.post(func() { c.onMicFrame(gen, frame) }) {
				return
			}
		}
	}
}

func (c *ConversationService) onMicFrame(gen int, frame []float32) {
	if gen != c.generation || c.state != entities.SessionStateActive {
		return
	}

	d := c.gate.Process(frame, c.face.Settings().NoiseThreshold)
	if now := time.Now(); now.Sub(c.lastMicLevel) >= c.config.MicLevelInterval {
		c.lastMicLevel = now
		c.face.SetMicLevel(d.Level)
	}

	if !d.Forward {
		metrics.MicFrames.WithLabelValues("gated").Inc()
		return
	}
	metrics.MicFrames.WithLabelValues("forwarded").Inc()

	if err := c.session.SendAudio(audio.EncodeFrame(frame, c.mic.SampleRate())); err != nil {
		c.logger.Debug("Failed to send audio", zap.Error(err))
	}
}

func (c *ConversationService) receivePump(ctx context.Context, gen int, session repositories.LiveSession) {
	for {
		event, err := session.Receive(ctx)
		if err != nil {
			c.post(func() { c.onStreamError(gen, err) })
			return
		}
		if !c.post(func() { c.onServerEvent(gen, event) }) {
			return
		}
	}
}

func (c *ConversationService) onStreamError(gen int, err error) {
	if gen != c.generation || c.state != entities.SessionStateActive {
		return
	}
	if errors.Is(err, io.EOF) {
		c.teardown("server_closed")
		return
	}
	c.logger.Warn("Voice stream failed", zap.Error(err))
	c.teardown(ErrorCodeConnectionLost)
	c.presenter.PublishError(ErrorCodeConnectionLost, "Connection lost.", false)
}

func (c *ConversationService) onServerEvent(gen int, event *repositories.ServerEvent) {
	if gen != c.generation || c.state != entities.SessionStateActive || event == nil {
		return
	}
	c.record.Touch()

	if event.Interrupted {
		c.interrupt()
	}
	if event.InputTranscript != "" {
		c.presenter.PublishTranscript(c.face.Transcript().Append(entities.SpeakerUser, event.InputTranscript))
	}
	if event.OutputTranscript != "" {
		c.presenter.PublishTranscript(c.face.Transcript().Append(entities.SpeakerAgent, event.OutputTranscript))
	}
	for _, part := range event.Audio {
		rate := part.SampleRate
		if rate <= 0 {
			rate = c.config.OutputSampleRate
		}
		buf := audio.DecodeWire(part.Data, rate, part.Channels)
		if buf.Frames() == 0 {
			continue
		}
		if _, err := c.scheduler.Enqueue(buf); err == nil {
			metrics.AudioChunks.Inc()
		}
	}
	if len(event.ToolCalls) > 0 {
		c.dispatchTools(event.ToolCalls)
	}
	if event.TurnComplete {
		c.face.Transcript().CloseTurn()
		switch c.face.Status() {
		case entities.StatusThinking, entities.StatusListening:
			if c.scheduler.Pending() == 0 {
				c.face.SetStatus(entities.StatusIdle)
			}
		}
	}
}

// dispatchTools hands a batch to the session's tool worker. Batches are
// answered in the order they arrived. A full queue answers the batch with an
// error right away.
func (c *ConversationService) dispatchTools(calls []repositories.ToolInvocation) {
	select {
	case c.toolCalls <- calls:
	default:
		c.logger.Warn("Tool queue full, rejecting batch", zap.Int("calls", len(calls)))
		results := make([]repositories.ToolResult, len(calls))
		for i, call := range calls {
			results[i] = repositories.ToolResult{ID: call.ID, Name: call.Name, Error: "busy, try again"}
		}
		if err := c.session.SendToolResults(results); err != nil {
			c.logger.Debug("Failed to send tool results", zap.Error(err))
		}
	}
}

// toolWorker runs batches one at a time off the loop. Handlers reach the
// face through do, so they never race the loop. It stops with the session.
func (c *ConversationService) toolWorker(ctx context.Context, session repositories.LiveSession, batches <-chan []repositories.ToolInvocation) {
	for {
		select {
		case <-ctx.Done():
			return
		case calls := <-batches:
			results := c.dispatcher.Dispatch(ctx, calls)
			if ctx.Err() != nil {
				return
			}
			if err := session.SendToolResults(results); err != nil {
				c.logger.Debug("Failed to send tool results", zap.Error(err))
			}
		}
	}
}

// Touch plays a short reaction for a tap on a face region
func (c *ConversationService) Touch(region string) {
	c.do(func() {
		c.face.ResetBoredom()
		c.face.SetReaction(string(touchReaction(region)))
		c.reactionSeq++
		seq := c.reactionSeq
		time.AfterFunc(c.config.ReactionDuration, func() {
			c.post(func() {
				if seq == c.reactionSeq {
					c.face.SetReaction("")
				}
			})
		})
	})
}

func touchReaction(region string) entities.Expression {
	switch strings.ToLower(region) {
	case "eye", "eyes", "eye-left", "eye-right":
		return entities.ExpressionAnnoyed
	case "mouth":
		return entities.ExpressionSurprised
	case "head", "forehead", "brow":
		return entities.ExpressionCurious
	case "nose":
		return entities.ExpressionWink
	default:
		return entities.ExpressionHappy
	}
}

// Snapshot returns the current face state
func (c *ConversationService) Snapshot() entities.FaceState {
	var state entities.FaceState
	c.do(func() { state = c.face.Snapshot() })
	return state
}

// State returns the session lifecycle state
func (c *ConversationService) State() entities.SessionState {
	state := entities.SessionStateDisconnected
	c.do(func() { state = c.state })
	return state
}

// Memories returns the archived image thoughts, most recent first
func (c *ConversationService) Memories() []entities.ThoughtArtifact {
	var items []entities.ThoughtArtifact
	c.do(func() { items = c.face.Memories() })
	return items
}

func (c *ConversationService) endRecord(reason string) {
	if c.record == nil {
		return
	}
	c.record.End(reason)
	c.persistSession()
	c.record = nil
}

// persistSession queues a copy of the session record for the writer
func (c *ConversationService) persistSession() {
	if c.sessions == nil || c.record == nil {
		return
	}
	select {
	case c.records <- *c.record:
	default:
		c.logger.Warn("Session record queue full, dropping update", zap.String("sessionID", c.record.ID))
	}
}

// recordWriter persists session records in order, creating each on first
// sight.
func (c *ConversationService) recordWriter() {
	created := make(map[string]bool)
	for record := range c.records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		if created[record.ID] {
			err = c.sessions.Update(ctx, &record)
		} else {
			err = c.sessions.Create(ctx, &record)
			created[record.ID] = err == nil
		}
		cancel()
		if err != nil {
			c.logger.Warn("Failed to persist session record", zap.String("sessionID", record.ID), zap.Error(err))
		}
	}
}

func releaseWakeData(data saga.Data, logger *zap.Logger) {
	if session := wake.Session(data); session != nil {
		if err := session.Close(); err != nil {
			logger.Debug("Failed to close stale session", zap.Error(err))
		}
	}
	if mic := wake.Microphone(data); mic != nil {
		mic.Close()
	}
	if output := wake.Output(data); output != nil {
		output.Close()
	}
}

type outputSink struct {
	out repositories.AudioOutput
}

func (s outputSink) Play(h audio.Handle, buf *audio.Buffer) error {
	return s.out.Play(h.ID, h.StartAt, audio.EncodeBuffer(buf), len(buf.Channels))
}

func (s outputSink) Stop(h audio.Handle) error {
	return s.out.Stop(h.ID)
}

type outputClock struct {
	out repositories.AudioOutput
}

func (c outputClock) Now() float64 {
	return c.out.Now()
}

func (c outputClock) AfterFunc(d time.Duration, f func()) audio.Timer {
	return time.AfterFunc(d, f)
}

package usecase

import (
	"github.com/satriahrh/wajah/domain/entities"
)

// Presenter delivers face updates to the client. Implementations must be safe
// for concurrent use and must not block.
type Presenter interface {
	PublishState(state entities.FaceState)
	PublishTranscript(line entities.TranscriptLine)
	PublishError(code, message string, retryable bool)
	OpenURL(url string)
}

// Face is the presentation state of one conversation. It is owned by the
// conversation loop and is not safe for concurrent use.
type Face struct {
	sessionState entities.SessionState
	status       entities.ConversationStatus
	expression   string
	reaction     string
	stickers     []entities.Sticker
	thought      *entities.ThoughtArtifact
	memory       *entities.MemoryBank
	style        string
	vision       entities.VisionSource
	boredom      int
	micLevel     float64
	moods        entities.CustomExpressions
	settings     entities.VoiceSettings
	transcript   *entities.Transcript

	dirty    bool
	onStatus func(from, to entities.ConversationStatus)
}

// NewFace creates an idle, disconnected face
func NewFace(memoryLimit int) *Face {
	return &Face{
		sessionState: entities.SessionStateDisconnected,
		status:       entities.StatusIdle,
		expression:   string(entities.ExpressionNeutral),
		memory:       entities.NewMemoryBank(memoryLimit),
		vision:       entities.VisionNone,
		moods:        entities.CustomExpressions{},
		settings:     entities.DefaultVoiceSettings(),
		transcript:   entities.NewTranscript(),
		dirty:        true,
	}
}

func (f *Face) Status() entities.ConversationStatus {
	return f.status
}

// SetStatus is the only way the conversation status changes
func (f *Face) SetStatus(status entities.ConversationStatus) {
	if f.status == status {
		return
	}
	from := f.status
	f.status = status
	f.dirty = true
	if f.onStatus != nil {
		f.onStatus(from, status)
	}
}

func (f *Face) SessionState() entities.SessionState {
	return f.sessionState
}

func (f *Face) SetSessionState(state entities.SessionState) {
	if f.sessionState != state {
		f.sessionState = state
		f.dirty = true
	}
}

// SetExpression applies a base or registered custom mood. Unknown names are
// ignored and reported as false.
func (f *Face) SetExpression(name string) bool {
	if !f.moods.Has(name) {
		return false
	}
	f.expression = name
	f.dirty = true
	return true
}

// ResetExpression returns the face to neutral
func (f *Face) ResetExpression() {
	f.expression = string(entities.ExpressionNeutral)
	f.dirty = true
}

func (f *Face) Expression() string {
	return f.expression
}

// SetReaction overlays a transient expression; an empty name removes it
func (f *Face) SetReaction(name string) {
	f.reaction = name
	f.dirty = true
}

func (f *Face) AddSticker(s entities.Sticker) {
	f.stickers = append(f.stickers, s)
	f.dirty = true
}

// RemoveSticker drops the sticker with id if it is still shown
func (f *Face) RemoveSticker(id string) {
	for i, s := range f.stickers {
		if s.ID == id {
			f.stickers = append(f.stickers[:i], f.stickers[i+1:]...)
			f.dirty = true
			return
		}
	}
}

func (f *Face) Stickers() []entities.Sticker {
	return f.stickers
}

// SetThought replaces the active thought. Finished image thoughts are
// archived in the memory bank.
func (f *Face) SetThought(t *entities.ThoughtArtifact) {
	f.thought = t
	f.dirty = true
	if t != nil && !t.Pending && t.Kind.Archivable() {
		f.memory.Add(*t)
	}
}

// ResolveThought completes a pending thought. The result is archived even if
// another thought replaced it in the meantime.
func (f *Face) ResolveThought(id, payload string) {
	if f.thought != nil && f.thought.ID == id {
		f.thought.Payload = payload
		f.thought.Pending = false
		f.memory.Add(*f.thought)
		f.dirty = true
		return
	}
	t := entities.NewThought(entities.ThoughtGeneratedImage, payload, "")
	t.ID = id
	f.memory.Add(*t)
	f.dirty = true
}

// DropThought clears the active thought if it is still id
func (f *Face) DropThought(id string) {
	if f.thought != nil && f.thought.ID == id {
		f.ClearThought()
	}
}

func (f *Face) ClearThought() {
	if f.thought != nil {
		f.thought = nil
		f.dirty = true
	}
}

func (f *Face) Thought() *entities.ThoughtArtifact {
	return f.thought
}

func (f *Face) Memories() []entities.ThoughtArtifact {
	return f.memory.Items()
}

// SetStyle replaces the style override wholesale
func (f *Face) SetStyle(css string) {
	f.style = css
	f.dirty = true
}

func (f *Face) Style() string {
	return f.style
}

func (f *Face) SetVision(source entities.VisionSource) {
	if f.vision != source {
		f.vision = source
		f.dirty = true
	}
}

func (f *Face) Vision() entities.VisionSource {
	return f.vision
}

func (f *Face) Boredom() int {
	return f.boredom
}

// IncreaseBoredom raises the meter up to max
func (f *Face) IncreaseBoredom(max int) {
	if f.boredom < max {
		f.boredom++
		f.dirty = true
	}
}

func (f *Face) ResetBoredom() {
	if f.boredom != 0 {
		f.boredom = 0
		f.dirty = true
	}
}

func (f *Face) SetMicLevel(level float64) {
	if f.micLevel != level {
		f.micLevel = level
		f.dirty = true
	}
}

func (f *Face) Moods() entities.CustomExpressions {
	return f.moods
}

// SetMoods replaces the custom mood registry. The current expression falls
// back to neutral when its mood was removed.
func (f *Face) SetMoods(moods entities.CustomExpressions) {
	if moods == nil {
		moods = entities.CustomExpressions{}
	}
	f.moods = moods
	if !f.moods.Has(f.expression) {
		f.expression = string(entities.ExpressionNeutral)
	}
	f.dirty = true
}

func (f *Face) Settings() entities.VoiceSettings {
	return f.settings
}

func (f *Face) SetSettings(settings entities.VoiceSettings) {
	f.settings = settings
	f.dirty = true
}

func (f *Face) Transcript() *entities.Transcript {
	return f.transcript
}

// Snapshot returns an immutable copy for publishing
func (f *Face) Snapshot() entities.FaceState {
	shown := f.expression
	if f.reaction != "" {
		shown = f.reaction
	}
	eye, mouth := entities.ResolveExpression(shown, f.moods)

	state := entities.FaceState{
		SessionState:   f.sessionState,
		Status:         f.status,
		Expression:     shown,
		Eye:            eye,
		Mouth:          mouth,
		Stickers:       append([]entities.Sticker{}, f.stickers...),
		Style:          f.style,
		Vision:         f.vision,
		Boredom:        f.boredom,
		MicLevel:       f.micLevel,
		NoiseThreshold: f.settings.NoiseThreshold,
		CustomMoods:    f.moods.Clone(),
		MemoryCount:    f.memory.Len(),
	}
	if f.thought != nil {
		t := *f.thought
		state.Thought = &t
	}
	return state
}

// TakeDirty reports whether anything changed since the last call
func (f *Face) TakeDirty() bool {
	d := f.dirty
	f.dirty = false
	return d
}

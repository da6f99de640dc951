package usecase

import (
	"testing"
	"time"

	"github.com/satriahrh/wajah/domain/entities"
)

func TestFace_SetExpression(t *testing.T) {
	f := NewFace(0)
	f.SetMoods(entities.CustomExpressions{
		"smug": {EyeBase: entities.ExpressionSkeptical, MouthBase: entities.ExpressionHappy},
	})

	tests := []struct {
		name string
		ok   bool
		want string
	}{
		{"happy", true, "happy"},
		{"smug", true, "smug"},
		{"ecstatic", false, "smug"},
		{"", false, "smug"},
	}
	for _, tt := range tests {
		if ok := f.SetExpression(tt.name); ok != tt.ok {
			t.Errorf("SetExpression(%q) = %v, want %v", tt.name, ok, tt.ok)
		}
		if got := f.Expression(); got != tt.want {
			t.Errorf("After SetExpression(%q) expression = %q, want %q", tt.name, got, tt.want)
		}
	}

	snap := f.Snapshot()
	if snap.Eye != entities.ExpressionSkeptical || snap.Mouth != entities.ExpressionHappy {
		t.Errorf("Expected smug to resolve to skeptical/happy, got %s/%s", snap.Eye, snap.Mouth)
	}
}

func TestFace_RemovedMoodFallsBackToNeutral(t *testing.T) {
	f := NewFace(0)
	f.SetMoods(entities.CustomExpressions{
		"smug": {EyeBase: entities.ExpressionSkeptical, MouthBase: entities.ExpressionHappy},
	})
	f.SetExpression("smug")

	f.SetMoods(nil)

	if got := f.Expression(); got != string(entities.ExpressionNeutral) {
		t.Errorf("Expected neutral after mood removal, got %q", got)
	}
}

func TestFace_ReactionOverridesExpression(t *testing.T) {
	f := NewFace(0)
	f.SetExpression("sad")
	f.SetReaction(string(entities.ExpressionSurprised))

	if got := f.Snapshot().Expression; got != "surprised" {
		t.Errorf("Expected reaction to be shown, got %q", got)
	}

	f.SetReaction("")
	if got := f.Snapshot().Expression; got != "sad" {
		t.Errorf("Expected expression back after reaction, got %q", got)
	}
}

func TestFace_ThoughtsAndMemories(t *testing.T) {
	f := NewFace(0)

	f.SetThought(entities.NewThought(entities.ThoughtText, "hmm", ""))
	f.SetThought(entities.NewThought(entities.ThoughtImage, "https://example.com/cat.png", ""))
	if got := len(f.Memories()); got != 1 {
		t.Fatalf("Expected only the image to be archived, got %d memories", got)
	}

	pending := entities.NewThought(entities.ThoughtGeneratedImage, "", "a red fox")
	pending.Pending = true
	f.SetThought(pending)
	if got := len(f.Memories()); got != 1 {
		t.Fatalf("Pending thought must not be archived yet, got %d memories", got)
	}

	f.ResolveThought(pending.ID, "data:image/png;base64,AAAA")
	if th := f.Thought(); th == nil || th.Pending || th.Payload == "" {
		t.Fatalf("Expected resolved thought, got %+v", th)
	}
	memories := f.Memories()
	if len(memories) != 2 || memories[0].ID != pending.ID {
		t.Fatalf("Expected generated image archived first, got %+v", memories)
	}

	f.ClearThought()
	if f.Thought() != nil {
		t.Error("Expected no thought after ClearThought")
	}
	if got := f.Snapshot().MemoryCount; got != 2 {
		t.Errorf("Clearing a thought must keep memories, got count %d", got)
	}
}

func TestFace_ResolveReplacedThoughtStillArchives(t *testing.T) {
	f := NewFace(0)
	pending := entities.NewThought(entities.ThoughtGeneratedImage, "", "a boat")
	pending.Pending = true
	f.SetThought(pending)
	f.SetThought(entities.NewThought(entities.ThoughtText, "later", ""))

	f.ResolveThought(pending.ID, "data:image/png;base64,AAAA")

	if th := f.Thought(); th == nil || th.Kind != entities.ThoughtText {
		t.Errorf("Expected the newer thought to stay active, got %+v", th)
	}
	if got := len(f.Memories()); got != 1 {
		t.Errorf("Expected the generated image archived, got %d memories", got)
	}
}

func TestFace_Stickers(t *testing.T) {
	f := NewFace(0)
	a := entities.NewSticker("⭐", entities.StickerTopLeft, time.Second)
	b := entities.NewSticker("🔥", entities.StickerBottomRight, time.Second)
	f.AddSticker(a)
	f.AddSticker(b)

	f.RemoveSticker(a.ID)
	f.RemoveSticker("missing")

	stickers := f.Snapshot().Stickers
	if len(stickers) != 1 || stickers[0].ID != b.ID {
		t.Errorf("Expected only %s left, got %+v", b.ID, stickers)
	}
}

func TestFace_Boredom(t *testing.T) {
	f := NewFace(0)
	for i := 0; i < 5; i++ {
		f.IncreaseBoredom(3)
	}
	if got := f.Boredom(); got != 3 {
		t.Errorf("Expected boredom capped at 3, got %d", got)
	}
	f.ResetBoredom()
	if got := f.Boredom(); got != 0 {
		t.Errorf("Expected boredom reset, got %d", got)
	}
}

func TestFace_DirtyTracking(t *testing.T) {
	f := NewFace(0)
	if !f.TakeDirty() {
		t.Fatal("A new face must publish its first state")
	}
	if f.TakeDirty() {
		t.Fatal("Expected clean face after TakeDirty")
	}

	f.SetStatus(entities.StatusIdle)
	f.SetVision(entities.VisionNone)
	if f.TakeDirty() {
		t.Error("Setting unchanged values must not mark the face dirty")
	}

	f.SetStatus(entities.StatusListening)
	if !f.TakeDirty() {
		t.Error("Status change must mark the face dirty")
	}
}

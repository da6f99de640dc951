package entities

import "testing"

func TestMemoryBank_MostRecentFirst(t *testing.T) {
	bank := NewMemoryBank(0)

	bank.Add(*NewThought(ThoughtImage, "a.png", ""))
	bank.Add(*NewThought(ThoughtGeneratedImage, "b.png", "a cat"))
	bank.Add(*NewThought(ThoughtImage, "c.png", ""))

	items := bank.Items()
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Payload != "c.png" || items[2].Payload != "a.png" {
		t.Errorf("Expected most-recent-first order, got %s..%s", items[0].Payload, items[2].Payload)
	}
}

func TestMemoryBank_Limit(t *testing.T) {
	bank := NewMemoryBank(2)

	bank.Add(*NewThought(ThoughtImage, "a.png", ""))
	bank.Add(*NewThought(ThoughtImage, "b.png", ""))
	bank.Add(*NewThought(ThoughtImage, "c.png", ""))

	if bank.Len() != 2 {
		t.Fatalf("Expected 2 items with limit, got %d", bank.Len())
	}
	items := bank.Items()
	if items[0].Payload != "c.png" || items[1].Payload != "b.png" {
		t.Errorf("Expected oldest entry evicted, got %+v", items)
	}
}

func TestParseThoughtKind(t *testing.T) {
	tests := map[string]ThoughtKind{
		"text":            ThoughtText,
		"image":           ThoughtImage,
		"video":           ThoughtVideo,
		"generated-image": ThoughtGeneratedImage,
		"music":           ThoughtMusicRef,
		"hologram":        ThoughtText,
	}
	for in, want := range tests {
		if got := ParseThoughtKind(in); got != want {
			t.Errorf("ParseThoughtKind(%q) = %s, want %s", in, got, want)
		}
	}

	if ThoughtText.Archivable() || !ThoughtGeneratedImage.Archivable() {
		t.Error("Only image kinds should be archivable")
	}
}

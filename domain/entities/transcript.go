package entities

import "github.com/google/uuid"

// TranscriptLine is one caption line of the conversation
type TranscriptLine struct {
	ID      string  `json:"id"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript accumulates streamed transcript fragments into lines. A fragment
// extends the last line while its speaker is still in turn; otherwise a new
// line is started. Only CloseTurn ends a turn.
type Transcript struct {
	Lines  []TranscriptLine
	inTurn map[Speaker]bool
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{inTurn: make(map[Speaker]bool)}
}

// Append applies one fragment and returns the line it landed in
func (t *Transcript) Append(speaker Speaker, text string) TranscriptLine {
	if t.inTurn == nil {
		t.inTurn = make(map[Speaker]bool)
	}

	if n := len(t.Lines); n > 0 && t.Lines[n-1].Speaker == speaker && t.inTurn[speaker] {
		t.Lines[n-1].Text += text
		return t.Lines[n-1]
	}

	line := TranscriptLine{
		ID:      uuid.New().String(),
		Speaker: speaker,
		Text:    text,
	}
	t.Lines = append(t.Lines, line)
	t.inTurn[speaker] = true
	return line
}

// CloseTurn resets the per-speaker accumulators on a turn boundary
func (t *Transcript) CloseTurn() {
	for speaker := range t.inTurn {
		t.inTurn[speaker] = false
	}
}

// InTurn reports whether the next fragment from speaker extends its open line
func (t *Transcript) InTurn(speaker Speaker) bool {
	return t.inTurn[speaker]
}

// Last returns up to n most recent lines, oldest first
func (t *Transcript) Last(n int) []TranscriptLine {
	if n <= 0 || len(t.Lines) == 0 {
		return nil
	}
	if n > len(t.Lines) {
		n = len(t.Lines)
	}
	out := make([]TranscriptLine, n)
	copy(out, t.Lines[len(t.Lines)-n:])
	return out
}

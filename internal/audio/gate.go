package audio

import "github.com/satriahrh/wajah/domain/entities"

// DefaultHangoverFrames keeps the gate open for a short tail of silence so
// word endings reach the voice service.
const DefaultHangoverFrames = 8

// Interrupter cuts agent playback when the user talks over it
type Interrupter interface {
	Interrupt()
}

// InterrupterFunc adapts a function to Interrupter
type InterrupterFunc func()

func (f InterrupterFunc) Interrupt() {
	f()
}

// Decision is the outcome of gating one captured frame
type Decision struct {
	Level   float64
	Active  bool
	Forward bool
	BargeIn bool
}

// Gate decides which captured frames reach the voice service. A frame above
// the threshold is always forwarded; after it, at most hangover silent frames
// follow before the gate closes.
type Gate struct {
	status      StatusController
	interrupter Interrupter
	hangover    int
	remaining   int
}

// NewGate creates a gate with the given hangover length in frames
func NewGate(status StatusController, interrupter Interrupter, hangover int) *Gate {
	if hangover < 0 {
		hangover = 0
	}
	return &Gate{
		status:      status,
		interrupter: interrupter,
		hangover:    hangover,
	}
}

// Process classifies a frame against threshold. On barge-in the interrupter
// runs before Process returns, so playback is stopped before the frame is
// forwarded.
func (g *Gate) Process(frame []float32, threshold float64) Decision {
	d := Decision{Level: MeanAbsAmplitude(frame)}

	if d.Level > threshold {
		d.Active = true
		switch g.status.Status() {
		case entities.StatusSpeaking:
			if g.interrupter != nil {
				g.interrupter.Interrupt()
			}
			d.BargeIn = true
		case entities.StatusIdle:
			g.status.SetStatus(entities.StatusListening)
		}
		g.remaining = g.hangover
		d.Forward = true
		return d
	}

	if g.remaining > 0 {
		g.remaining--
		d.Forward = true
	}
	if g.remaining == 0 && g.status.Status() == entities.StatusListening {
		g.status.SetStatus(entities.StatusThinking)
	}
	return d
}

// Reset closes the gate immediately
func (g *Gate) Reset() {
	g.remaining = 0
}

// Remaining returns how many silent frames the gate will still forward
func (g *Gate) Remaining() int {
	return g.remaining
}

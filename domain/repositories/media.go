package repositories

import (
	"context"

	"github.com/satriahrh/wajah/domain/entities"
)

// MediaDevices opens the capture and playback graphs of one face client
type MediaDevices interface {
	// OpenMicrophone starts mono capture at sampleRate. It fails with
	// domain.ErrPermissionDenied when the user refuses.
	OpenMicrophone(ctx context.Context, sampleRate int) (AudioInput, error)
	OpenOutput(ctx context.Context, sampleRate int) (AudioOutput, error)
	// OpenVideo starts camera or screen capture. It fails with
	// domain.ErrPermissionDenied or domain.ErrNotSupported.
	OpenVideo(ctx context.Context, source entities.VisionSource) (VideoSource, error)
}

// AudioInput delivers captured mono float32 frames
type AudioInput interface {
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// AudioOutput is the playback graph. Time is measured in seconds on the
// output clock, which starts at zero when the output is opened.
type AudioOutput interface {
	Now() float64
	Play(id string, startAt float64, pcm entities.Blob, channels int) error
	Stop(id string) error
	Close() error
}

// VideoSource holds the most recent captured frame
type VideoSource interface {
	// LatestFrame returns the last encoded frame, if any arrived yet
	LatestFrame() ([]byte, bool)
	Close() error
}

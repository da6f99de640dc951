package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
)

const (
	DefaultInterval  = time.Second
	DefaultMaxWidth  = 640
	DefaultMaxHeight = 480
	DefaultQuality   = 60
)

// ErrSuperseded is returned by an Activate that was overtaken by a later
// Activate, Deactivate or Close while its source was opening.
var ErrSuperseded = errors.New("vision activation superseded")

// FrameSender receives sampled frames, normally the live session
type FrameSender interface {
	SendImage(blob entities.Blob) error
}

// Config tunes the sampler
type Config struct {
	Interval  time.Duration
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func (c *Config) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = DefaultMaxHeight
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
}

// Sampler streams a downscaled frame from the active video source to the
// session at a fixed interval. At most one source is active.
type Sampler struct {
	devices repositories.MediaDevices
	sender  FrameSender
	config  Config
	logger  *zap.Logger

	mu     sync.Mutex
	source entities.VisionSource
	video  repositories.VideoSource
	cancel context.CancelFunc
	done   chan struct{}
	sent   int
	closed bool
	// gen is bumped by every Activate and Deactivate; only the newest
	// activation may install its source
	gen int
}

// NewSampler creates an inactive sampler
func NewSampler(devices repositories.MediaDevices, sender FrameSender, config Config, logger *zap.Logger) *Sampler {
	config.withDefaults()
	return &Sampler{
		devices: devices,
		sender:  sender,
		config:  config,
		logger:  logger,
		source:  entities.VisionNone,
	}
}

// Activate switches to source. Any previous source is stopped first, so a
// failed activation leaves the sampler inactive.
func (s *Sampler) Activate(ctx context.Context, source entities.VisionSource) error {
	s.Deactivate()
	if source == entities.VisionNone {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	video, err := s.devices.OpenVideo(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed || gen != s.gen {
		closed := s.closed
		s.mu.Unlock()
		cancel()
		if err := video.Close(); err != nil {
			s.logger.Debug("Failed to close video source", zap.Error(err))
		}
		if closed {
			return domain.ErrNotConnected
		}
		return ErrSuperseded
	}
	s.source = source
	s.video = video
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(loopCtx, video, done)

	s.logger.Info("Vision activated", zap.String("source", string(source)))
	return nil
}

// Deactivate stops sampling and releases the source. It is safe to call when
// nothing is active.
func (s *Sampler) Deactivate() {
	s.mu.Lock()
	s.gen++
	cancel, done, video, source := s.cancel, s.done, s.video, s.source
	s.cancel, s.done, s.video = nil, nil, nil
	s.source = entities.VisionNone
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if err := video.Close(); err != nil {
		s.logger.Debug("Failed to close video source", zap.Error(err))
	}
	s.logger.Info("Vision deactivated", zap.String("source", string(source)))
}

// Close deactivates the sampler for good. Later activations fail with
// domain.ErrNotConnected.
func (s *Sampler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Deactivate()
}

// Active reports whether a source is streaming
func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != entities.VisionNone
}

// Source returns the active source, or none
func (s *Sampler) Source() entities.VisionSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// FramesSent returns how many frames reached the sender
func (s *Sampler) FramesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Sampler) run(ctx context.Context, video repositories.VideoSource, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(video)
		}
	}
}

func (s *Sampler) sample(video repositories.VideoSource) {
	raw, ok := video.LatestFrame()
	if !ok {
		return
	}

	blob, err := EncodeFrame(raw, s.config.MaxWidth, s.config.MaxHeight, s.config.Quality)
	if err != nil {
		s.logger.Debug("Dropping undecodable frame", zap.Error(err))
		return
	}

	if err := s.sender.SendImage(blob); err != nil {
		s.logger.Warn("Failed to send frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
}

// EncodeFrame decodes a captured frame, scales it to fit within maxW×maxH
// keeping its aspect ratio, and re-encodes it as base64 JPEG.
func EncodeFrame(raw []byte, maxW, maxH, quality int) (entities.Blob, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return entities.Blob{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	img := Fit(src, maxW, maxH)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return entities.Blob{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	return entities.Blob{
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		MIMEType: "image/jpeg",
	}, nil
}

// Fit scales src down to fit within maxW×maxH. Smaller images are returned
// unchanged.
func Fit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
)

type fakeVideo struct {
	mu     sync.Mutex
	frame  []byte
	closed int
}

func (v *fakeVideo) LatestFrame() ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame, v.frame != nil
}

func (v *fakeVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed++
	return nil
}

type fakeDevices struct {
	video  *fakeVideo
	err    error
	opened []entities.VisionSource
}

func (d *fakeDevices) OpenMicrophone(ctx context.Context, sampleRate int) (repositories.AudioInput, error) {
	return nil, domain.ErrNotSupported
}

func (d *fakeDevices) OpenOutput(ctx context.Context, sampleRate int) (repositories.AudioOutput, error) {
	return nil, domain.ErrNotSupported
}

func (d *fakeDevices) OpenVideo(ctx context.Context, source entities.VisionSource) (repositories.VideoSource, error) {
	d.opened = append(d.opened, source)
	if d.err != nil {
		return nil, d.err
	}
	return d.video, nil
}

type recordingSender struct {
	mu    sync.Mutex
	blobs []entities.Blob
}

func (s *recordingSender) SendImage(blob entities.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = append(s.blobs, blob)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestSampler_StreamsFrames(t *testing.T) {
	video := &fakeVideo{frame: jpegFrame(t, 1280, 720)}
	devices := &fakeDevices{video: video}
	sender := &recordingSender{}
	s := NewSampler(devices, sender, Config{Interval: 10 * time.Millisecond}, zaptest.NewLogger(t))

	if err := s.Activate(context.Background(), entities.VisionCamera); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !s.Active() || s.Source() != entities.VisionCamera {
		t.Fatalf("Expected camera active, got %s", s.Source())
	}

	waitFor(t, func() bool { return sender.count() >= 2 })
	s.Deactivate()

	sender.mu.Lock()
	blob := sender.blobs[0]
	sender.mu.Unlock()
	if blob.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", blob.MIMEType)
	}
	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		t.Fatalf("Frame is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Frame is not a jpeg: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 360 {
		t.Errorf("Expected 640x360, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSampler_DeactivateStopsAndCloses(t *testing.T) {
	video := &fakeVideo{frame: jpegFrame(t, 32, 32)}
	sender := &recordingSender{}
	s := NewSampler(&fakeDevices{video: video}, sender, Config{Interval: 5 * time.Millisecond}, zaptest.NewLogger(t))

	s.Activate(context.Background(), entities.VisionScreen)
	waitFor(t, func() bool { return sender.count() >= 1 })

	s.Deactivate()
	s.Deactivate()

	if s.Active() {
		t.Error("Expected sampler inactive")
	}
	if video.closed != 1 {
		t.Errorf("Expected source closed once, got %d", video.closed)
	}

	after := sender.count()
	time.Sleep(30 * time.Millisecond)
	if sender.count() != after {
		t.Errorf("Frames sent after deactivate: %d -> %d", after, sender.count())
	}
}

func TestSampler_DeactivateNeverStarted(t *testing.T) {
	s := NewSampler(&fakeDevices{}, &recordingSender{}, Config{}, zaptest.NewLogger(t))
	s.Deactivate()
	if s.Active() {
		t.Error("Expected inactive sampler")
	}
}

func TestSampler_ActivateFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"permission denied", domain.ErrPermissionDenied},
		{"not supported", domain.ErrNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSampler(&fakeDevices{err: tt.err}, &recordingSender{}, Config{}, zaptest.NewLogger(t))

			err := s.Activate(context.Background(), entities.VisionScreen)
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
			if s.Active() {
				t.Error("Failed activation must leave sampler inactive")
			}
		})
	}
}

func TestSampler_SwitchSource(t *testing.T) {
	first := &fakeVideo{}
	devices := &fakeDevices{video: first}
	s := NewSampler(devices, &recordingSender{}, Config{}, zaptest.NewLogger(t))

	s.Activate(context.Background(), entities.VisionCamera)
	devices.video = &fakeVideo{}
	s.Activate(context.Background(), entities.VisionScreen)

	if first.closed != 1 {
		t.Errorf("Expected previous source closed, got %d", first.closed)
	}
	if s.Source() != entities.VisionScreen {
		t.Errorf("Expected screen active, got %s", s.Source())
	}

	s.Activate(context.Background(), entities.VisionNone)
	if s.Active() {
		t.Error("Activating none should deactivate")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1920, 1080, 640, 360},
		{"portrait", 720, 1280, 270, 480},
		{"already small", 320, 240, 320, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Fit(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), 640, 480)
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestSampler_ClosedRejectsActivate(t *testing.T) {
	video := &fakeVideo{}
	s := NewSampler(&fakeDevices{video: video}, &recordingSender{}, Config{}, zaptest.NewLogger(t))

	s.Close()
	err := s.Activate(context.Background(), entities.VisionCamera)
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if video.closed != 1 || s.Active() {
		t.Errorf("Expected source released and sampler inactive, closed=%d", video.closed)
	}
}

// gatedDevices holds every OpenVideo until release is closed
type gatedDevices struct {
	fakeDevices
	release chan struct{}

	mu     sync.Mutex
	videos []*fakeVideo
}

func (d *gatedDevices) OpenVideo(ctx context.Context, source entities.VisionSource) (repositories.VideoSource, error) {
	video := &fakeVideo{}
	d.mu.Lock()
	d.videos = append(d.videos, video)
	d.mu.Unlock()
	<-d.release
	return video, nil
}

func (d *gatedDevices) opened() []*fakeVideo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeVideo(nil), d.videos...)
}

func TestSampler_OverlappingActivations(t *testing.T) {
	devices := &gatedDevices{release: make(chan struct{})}
	s := NewSampler(devices, &recordingSender{}, Config{Interval: 10 * time.Millisecond}, zaptest.NewLogger(t))

	errs := make(chan error, 2)
	go func() { errs <- s.Activate(context.Background(), entities.VisionCamera) }()
	go func() { errs <- s.Activate(context.Background(), entities.VisionScreen) }()
	waitFor(t, func() bool { return len(devices.opened()) == 2 })
	close(devices.release)

	var superseded int
	for i := 0; i < 2; i++ {
		err := <-errs
		if errors.Is(err, ErrSuperseded) {
			superseded++
		} else if err != nil {
			t.Fatalf("Unexpected activation error: %v", err)
		}
	}
	if superseded != 1 {
		t.Fatalf("Expected exactly one superseded activation, got %d", superseded)
	}
	if !s.Active() {
		t.Fatal("Expected the winning activation to be active")
	}

	videos := devices.opened()
	open := 0
	for _, v := range videos {
		v.mu.Lock()
		if v.closed == 0 {
			open++
		}
		v.mu.Unlock()
	}
	if open != 1 {
		t.Errorf("Expected one open source before Close, got %d", open)
	}

	s.Close()
	for i, v := range videos {
		v.mu.Lock()
		closed := v.closed
		v.mu.Unlock()
		if closed != 1 {
			t.Errorf("Source %d closed %d times after Close, want 1", i, closed)
		}
	}
}

func TestSampler_CloseWhileOpening(t *testing.T) {
	devices := &gatedDevices{release: make(chan struct{})}
	s := NewSampler(devices, &recordingSender{}, Config{}, zaptest.NewLogger(t))

	errs := make(chan error, 1)
	go func() { errs <- s.Activate(context.Background(), entities.VisionCamera) }()
	waitFor(t, func() bool { return len(devices.opened()) == 1 })

	s.Close()
	close(devices.release)

	if err := <-errs; !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if s.Active() {
		t.Error("Expected sampler inactive after Close")
	}
	v := devices.opened()[0]
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed != 1 {
		t.Errorf("Expected the opening source to be closed once, got %d", v.closed)
	}
}

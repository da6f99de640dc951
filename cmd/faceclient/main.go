package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/internal/api"
	"github.com/satriahrh/wajah/internal/audio"
	"github.com/satriahrh/wajah/internal/logger"
	"github.com/satriahrh/wajah/internal/websocket"
)

const frameDuration = 20 * time.Millisecond

var (
	serverURL string
	serial    string
	secret    string
	wavPath   string
	outPath   string
	verbose   bool
	log       *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "faceclient",
		Short: "Headless face client for smoke testing a wajah server",
		Long: `faceclient authenticates as a device, opens the face websocket, wakes the
face and grants the microphone. It streams a 16-bit mono WAV file (or
silence) as microphone audio, prints transcripts and optionally writes the
received speech as raw PCM.`,
		PersistentPreRunE: initLogging,
		RunE:              runFace,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().StringVar(&serial, "serial", "dev-face", "device serial number")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "dev-secret", "device secret")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&wavPath, "wav", "", "16-bit mono WAV file to stream as microphone input")
	rootCmd.Flags().StringVar(&outPath, "out", "", "file to append received 16-bit PCM speech to")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "token",
		Short: "Authenticate and print a device token",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := authenticate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(auth.Token)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	var err error
	log, err = logger.New(level, false)
	return err
}

func authenticate(ctx context.Context) (*api.DeviceAuthResponse, error) {
	body, err := json.Marshal(api.DeviceAuthRequest{SerialNumber: serial, SecretKey: secret})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/v1/device/auth", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authentication failed: %s", string(data))
	}

	var auth api.DeviceAuthResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func runFace(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var samples []float32
	if wavPath != "" {
		var rate int
		var err error
		samples, rate, err = readWAV(wavPath)
		if err != nil {
			return err
		}
		log.Info("Loaded microphone input", zap.String("file", wavPath), zap.Int("sampleRate", rate), zap.Int("samples", len(samples)))
	}

	var out io.Writer
	if outPath != "" {
		f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	auth, err := authenticate(ctx)
	if err != nil {
		return err
	}
	log.Info("Authenticated", zap.String("deviceID", auth.DeviceID))

	u, err := url.Parse(serverURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+auth.Token)
	conn, _, err := gws.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f := &face{conn: conn, samples: samples, out: out}
	done := make(chan struct{})
	go f.readLoop(ctx, done)

	if err := f.writeJSON(map[string]string{"type": string(websocket.MessageTypeWake)}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	log.Info("Interrupted, putting the face to sleep")
	f.writeJSON(map[string]string{"type": string(websocket.MessageTypeSleep)})
	f.write(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

type face struct {
	conn    *gws.Conn
	samples []float32
	out     io.Writer

	mu         sync.Mutex
	stopStream context.CancelFunc
	chunks     int
}

func (f *face) write(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn.WriteMessage(messageType, data)
}

func (f *face) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.write(gws.TextMessage, data)
}

func (f *face) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		messageType, message, err := f.conn.ReadMessage()
		if err != nil {
			log.Info("Connection closed", zap.Error(err))
			return
		}
		if messageType != gws.TextMessage {
			continue
		}

		var base websocket.BaseMessage
		if err := json.Unmarshal(message, &base); err != nil {
			log.Warn("Unreadable message", zap.Error(err))
			continue
		}

		switch base.Type {
		case websocket.MessageTypeMediaRequest:
			var req websocket.MediaRequestMessage
			json.Unmarshal(message, &req)
			f.answer(ctx, req)

		case websocket.MessageTypeMediaRelease:
			var rel websocket.MediaReleaseMessage
			json.Unmarshal(message, &rel)
			if rel.Kind == websocket.MediaMicrophone {
				f.stopMicrophone()
			}

		case websocket.MessageTypeTranscript:
			var msg websocket.TranscriptMessage
			json.Unmarshal(message, &msg)
			log.Info("Transcript", zap.String("speaker", string(msg.Line.Speaker)), zap.String("text", msg.Line.Text))

		case websocket.MessageTypePlayAudio:
			var msg websocket.PlayAudioMessage
			json.Unmarshal(message, &msg)
			f.chunks++
			log.Debug("Audio chunk", zap.String("id", msg.ID), zap.Float64("startAt", msg.StartAt), zap.Int("chunks", f.chunks))
			if f.out != nil {
				if pcm, err := audio.DecodeBase64(msg.Data); err == nil {
					f.out.Write(pcm)
				}
			}

		case websocket.MessageTypeState:
			var msg websocket.StateMessage
			json.Unmarshal(message, &msg)
			log.Debug("State",
				zap.String("session", string(msg.State.SessionState)),
				zap.String("status", string(msg.State.Status)),
				zap.String("expression", msg.State.Expression))

		case websocket.MessageTypeOpenURL:
			var msg websocket.OpenURLMessage
			json.Unmarshal(message, &msg)
			log.Info("Face wants to open a page", zap.String("url", msg.URL))

		case websocket.MessageTypeError:
			var msg websocket.ErrorMessage
			json.Unmarshal(message, &msg)
			log.Warn("Server error", zap.String("code", msg.Code), zap.String("message", msg.Message), zap.Bool("retryable", msg.Retryable))
		}
	}
}

// answer grants the microphone and refuses cameras, which a headless client
// does not have
func (f *face) answer(ctx context.Context, req websocket.MediaRequestMessage) {
	resp := websocket.MediaResponseMessage{
		BaseMessage: websocket.BaseMessage{Type: websocket.MessageTypeMediaResponse},
		RequestID:   req.RequestID,
	}
	if req.Kind == websocket.MediaMicrophone {
		resp.Granted = true
	} else {
		resp.Error = websocket.MediaErrorUnsupported
	}
	if err := f.writeJSON(resp); err != nil {
		log.Warn("Failed to answer media request", zap.Error(err))
		return
	}
	if resp.Granted {
		f.startMicrophone(ctx, req.SampleRate)
	}
}

func (f *face) startMicrophone(ctx context.Context, sampleRate int) {
	f.stopMicrophone()
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.stopStream = cancel
	f.mu.Unlock()
	go f.stream(ctx, sampleRate)
}

func (f *face) stopMicrophone() {
	f.mu.Lock()
	cancel := f.stopStream
	f.stopStream = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// stream sends the loaded samples in real time, then silence
func (f *face) stream(ctx context.Context, sampleRate int) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	frameSize := int(float64(sampleRate) * frameDuration.Seconds())
	silence := make([]float32, frameSize)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := silence
		if pos < len(f.samples) {
			end := min(pos+frameSize, len(f.samples))
			frame = f.samples[pos:end]
			pos = end
		}
		data := append([]byte{websocket.FrameMicrophone}, audio.Float32ToBytes(frame)...)
		if err := f.write(gws.BinaryMessage, data); err != nil {
			log.Debug("Microphone stream stopped", zap.Error(err))
			return
		}
	}
}

// readWAV reads a 16-bit PCM mono WAV file
func readWAV(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a WAV file")
	}

	var sampleRate, channels, bits int
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8 : min(pos+8+size, len(data))]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, 0, errors.New("short fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			if channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("want 16-bit mono, got %d-bit with %d channels", bits, channels)
			}
			buf := audio.DecodeWire(body, sampleRate, 1)
			return buf.Channels[0], sampleRate, nil
		}
		pos += 8 + size + size%2
	}
	return nil, 0, errors.New("no data chunk")
}

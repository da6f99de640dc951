package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/audio"
)

// GeminiLive implements repositories.VoiceService on the Gemini Live API
type GeminiLive struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

// NewGeminiLive creates the Live client. It fails when the API key is
// missing.
func NewGeminiLive(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLive, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Info("Gemini Live ready",
		zap.String("model", config.LiveModel),
		zap.String("imageModel", config.ImageModel))

	return &GeminiLive{client: client, config: config, logger: logger}, nil
}

// Images returns an image generator sharing this client
func (g *GeminiLive) Images() *GeminiImages {
	return &GeminiImages{client: g.client, config: g.config, logger: g.logger}
}

// Connect opens one Live session configured for spoken audio replies
func (g *GeminiLive) Connect(ctx context.Context, config repositories.SessionConfig) (repositories.LiveSession, error) {
	voice := config.VoiceName
	if voice == "" {
		voice = g.config.VoiceName
	}

	session, err := g.client.Live.Connect(ctx, g.config.LiveModel, liveConnectConfig(config, voice))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini Live: %w", err)
	}

	g.logger.Info("Gemini Live session opened",
		zap.String("voice", voice),
		zap.Int("tools", len(config.Tools)))

	return &liveSession{session: session, logger: g.logger}, nil
}

func liveConnectConfig(config repositories.SessionConfig, voice string) *genai.LiveConnectConfig {
	c := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	if config.SystemInstruction != "" {
		c.SystemInstruction = genai.NewContentFromText(config.SystemInstruction, genai.RoleUser)
	}
	if len(config.Tools) > 0 {
		c.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(config.Tools)}}
	}
	if config.InputTranscription {
		c.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if config.OutputTranscription {
		c.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return c
}

// liveSession adapts a genai Live session. Sends are serialized because the
// underlying websocket allows a single writer.
type liveSession struct {
	session *genai.Session
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (s *liveSession) SendAudio(blob entities.Blob) error {
	b, err := toGenaiBlob(blob)
	if err != nil {
		return err
	}
	return s.send(func() error {
		return s.session.SendRealtimeInput(genai.LiveRealtimeInput{Audio: b})
	})
}

func (s *liveSession) SendImage(blob entities.Blob) error {
	b, err := toGenaiBlob(blob)
	if err != nil {
		return err
	}
	return s.send(func() error {
		return s.session.SendRealtimeInput(genai.LiveRealtimeInput{Video: b})
	})
}

func (s *liveSession) SendToolResults(results []repositories.ToolResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.send(func() error {
		return s.session.SendToolResponse(genai.LiveToolResponseInput{
			FunctionResponses: functionResponses(results),
		})
	})
}

func (s *liveSession) send(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	return fn()
}

// Receive blocks for the next server message. Closing the session unblocks
// it; ctx is consulted to tell a requested stop from a stream failure.
func (s *liveSession) Receive(ctx context.Context) (*repositories.ServerEvent, error) {
	for {
		msg, err := s.session.Receive()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if s.isClosed() {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("gemini live receive: %w", err)
		}
		if msg.GoAway != nil {
			s.logger.Info("Gemini Live is going away", zap.Any("timeLeft", msg.GoAway.TimeLeft))
		}
		if event := serverEvent(msg); event != nil {
			return event, nil
		}
	}
}

func (s *liveSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.session.Close()
}

func (s *liveSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func toGenaiBlob(blob entities.Blob) (*genai.Blob, error) {
	data, err := audio.DecodeBase64(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid blob payload: %w", err)
	}
	if blob.MIMEType == "" {
		return nil, errors.New("blob mime type is required")
	}
	return &genai.Blob{Data: data, MIMEType: blob.MIMEType}, nil
}

// serverEvent maps one Live message onto the session event. Messages that
// carry nothing the conversation acts on map to nil.
func serverEvent(msg *genai.LiveServerMessage) *repositories.ServerEvent {
	if msg == nil {
		return nil
	}
	event := &repositories.ServerEvent{}
	empty := true

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			event.Interrupted = true
			empty = false
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			event.InputTranscript = sc.InputTranscription.Text
			empty = false
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			event.OutputTranscript = sc.OutputTranscription.Text
			empty = false
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				event.Audio = append(event.Audio, repositories.AudioPart{
					Data:       part.InlineData.Data,
					SampleRate: audio.ParseSampleRate(part.InlineData.MIMEType, 0),
					Channels:   1,
				})
				empty = false
			}
		}
		if sc.TurnComplete {
			event.TurnComplete = true
			empty = false
		}
	}

	if tc := msg.ToolCall; tc != nil {
		for _, call := range tc.FunctionCalls {
			if call == nil {
				continue
			}
			event.ToolCalls = append(event.ToolCalls, repositories.ToolInvocation{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
			empty = false
		}
	}

	if empty {
		return nil
	}
	return event
}

// Package wake defines the connect sequence of a conversation as a saga:
// microphone, then audio output, then the voice session. A failure releases
// whatever was acquired before it.
package wake

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/saga"
)

// Data keys for the wake saga
const (
	DataKeyMicrophone = "microphone"
	DataKeyOutput     = "output"
	DataKeySession    = "session"
)

const (
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
	DefaultTimeout          = 30 * time.Second
)

// Definition opens everything a conversation needs to stream
type Definition struct {
	Devices          repositories.MediaDevices
	Voice            repositories.VoiceService
	Session          repositories.SessionConfig
	InputSampleRate  int
	OutputSampleRate int
	Deadline         time.Duration
	Logger           *zap.Logger
}

func (d *Definition) ID() string {
	return "wake"
}

func (d *Definition) Timeout() time.Duration {
	if d.Deadline <= 0 {
		return DefaultTimeout
	}
	return d.Deadline
}

func (d *Definition) Steps() []saga.Step {
	in, out := d.InputSampleRate, d.OutputSampleRate
	if in <= 0 {
		in = DefaultInputSampleRate
	}
	if out <= 0 {
		out = DefaultOutputSampleRate
	}
	return []saga.Step{
		&acquireMicrophone{devices: d.Devices, sampleRate: in, logger: d.Logger},
		&openAudioOutput{devices: d.Devices, sampleRate: out, logger: d.Logger},
		&openSession{voice: d.Voice, config: d.Session, logger: d.Logger},
	}
}

type acquireMicrophone struct {
	devices    repositories.MediaDevices
	sampleRate int
	logger     *zap.Logger
}

func (s *acquireMicrophone) ID() saga.StepID {
	return "acquire_microphone"
}

func (s *acquireMicrophone) Execute(ctx context.Context, data saga.Data) error {
	mic, err := s.devices.OpenMicrophone(ctx, s.sampleRate)
	if err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	data[DataKeyMicrophone] = mic
	s.logger.Debug("Microphone acquired", zap.Int("sampleRate", s.sampleRate))
	return nil
}

func (s *acquireMicrophone) Compensate(ctx context.Context, data saga.Data) error {
	mic := Microphone(data)
	if mic == nil {
		return nil
	}
	delete(data, DataKeyMicrophone)
	return mic.Close()
}

type openAudioOutput struct {
	devices    repositories.MediaDevices
	sampleRate int
	logger     *zap.Logger
}

func (s *openAudioOutput) ID() saga.StepID {
	return "open_audio_output"
}

func (s *openAudioOutput) Execute(ctx context.Context, data saga.Data) error {
	output, err := s.devices.OpenOutput(ctx, s.sampleRate)
	if err != nil {
		return fmt.Errorf("audio output: %w", err)
	}
	data[DataKeyOutput] = output
	s.logger.Debug("Audio output opened", zap.Int("sampleRate", s.sampleRate))
	return nil
}

func (s *openAudioOutput) Compensate(ctx context.Context, data saga.Data) error {
	output := Output(data)
	if output == nil {
		return nil
	}
	delete(data, DataKeyOutput)
	return output.Close()
}

type openSession struct {
	voice  repositories.VoiceService
	config repositories.SessionConfig
	logger *zap.Logger
}

func (s *openSession) ID() saga.StepID {
	return "open_session"
}

func (s *openSession) Execute(ctx context.Context, data saga.Data) error {
	session, err := s.voice.Connect(ctx, s.config)
	if err != nil {
		return fmt.Errorf("voice session: %w", err)
	}
	data[DataKeySession] = session
	s.logger.Debug("Voice session opened", zap.Int("tools", len(s.config.Tools)))
	return nil
}

func (s *openSession) Compensate(ctx context.Context, data saga.Data) error {
	session := Session(data)
	if session == nil {
		return nil
	}
	delete(data, DataKeySession)
	return session.Close()
}

// Microphone returns the input opened by the saga, if any
func Microphone(data saga.Data) repositories.AudioInput {
	mic, _ := data[DataKeyMicrophone].(repositories.AudioInput)
	return mic
}

// Output returns the audio output opened by the saga, if any
func Output(data saga.Data) repositories.AudioOutput {
	output, _ := data[DataKeyOutput].(repositories.AudioOutput)
	return output
}

// Session returns the voice session opened by the saga, if any
func Session(data saga.Data) repositories.LiveSession {
	session, _ := data[DataKeySession].(repositories.LiveSession)
	return session
}

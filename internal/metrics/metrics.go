package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "wajah_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ConnectedFaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wajah_connected_faces",
			Help: "Number of face clients with an open websocket",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wajah_active_sessions",
			Help: "Number of live voice sessions",
		},
	)

	WakeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_wake_attempts_total",
			Help: "Connect attempts by outcome",
		},
		[]string{"result"},
	)

	SessionEnds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_session_ends_total",
			Help: "Voice sessions torn down, by reason",
		},
		[]string{"reason"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_tool_calls_total",
			Help: "Tool invocations by tool and outcome",
		},
		[]string{"tool", "result"},
	)

	BargeIns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wajah_barge_ins_total",
			Help: "Times the user talked over agent playback",
		},
	)

	MicFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_mic_frames_total",
			Help: "Microphone frames by stage",
		},
		[]string{"decision"},
	)

	AudioChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wajah_audio_chunks_scheduled_total",
			Help: "Synthesized audio chunks scheduled for playback",
		},
	)

	SagaEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_saga_events_total",
			Help: "Saga lifecycle events",
		},
		[]string{"definition", "type"},
	)

	WebsocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wajah_websocket_messages_total",
			Help: "Websocket messages by direction and type",
		},
		[]string{"direction", "type"},
	)
)

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for call handling.
//
// All helper methods are safe to call on a nil *Metrics, which keeps unit tests free of
// registry bookkeeping.
type Metrics struct {
	// ActiveSessions counts media-stream sessions currently running.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds.
	SessionDuration prometheus.Histogram

	// TurnCounter counts spoken turns.
	// Labels: kind (greeting|reply|fallback|abandoned|cancelled)
	TurnCounter *prometheus.CounterVec

	// CompletionDuration measures completion request latency in seconds.
	// Labels: provider (openai|gemini), status (success|error)
	CompletionDuration *prometheus.HistogramVec

	// OutboundChunks counts synthesized chunks relayed to the caller.
	// Labels: result (sent|dropped)
	OutboundChunks *prometheus.CounterVec

	// TranscriptEvents counts transcript events by kind.
	// Labels: kind (interim|final|speech_final)
	TranscriptEvents *prometheus.CounterVec

	// TranscriberReopens counts transcription channels reopened after a provider failure.
	TranscriberReopens prometheus.Counter

	// DecodeErrors counts inbound media frames that could not be decoded.
	DecodeErrors prometheus.Counter

	// CallsPlaced counts outbound call attempts.
	// Labels: status (success|error)
	CallsPlaced *prometheus.CounterVec

	// StatusCallbacks counts provider status postbacks.
	// Labels: call_status
	StatusCallbacks *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors with the default registry.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers all collectors with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Number of media-stream sessions currently running",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_session_duration_seconds",
			Help:    "Lifetime of media-stream sessions in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		TurnCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_turns_total",
			Help: "Spoken assistant turns by kind",
		}, []string{"kind"}),
		CompletionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_completion_duration_seconds",
			Help:    "Duration of completion requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "status"}),
		OutboundChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_outbound_chunks_total",
			Help: "Synthesized audio chunks relayed to the caller by result",
		}, []string{"result"}),
		TranscriptEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcript_events_total",
			Help: "Transcript events received by kind",
		}, []string{"kind"}),
		TranscriberReopens: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcriber_reopens_total",
			Help: "Transcription channels reopened after a provider failure",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_media_decode_errors_total",
			Help: "Inbound media frames that failed to decode",
		}),
		CallsPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_calls_placed_total",
			Help: "Outbound call attempts by status",
		}, []string{"status"}),
		StatusCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_status_callbacks_total",
			Help: "Call status callbacks received by call status",
		}, []string{"call_status"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded(lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) Turn(kind string) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(kind).Inc()
}

func (m *Metrics) Completion(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CompletionDuration.WithLabelValues(provider, status).Observe(elapsed.Seconds())
}

func (m *Metrics) OutboundChunk(sent bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "dropped"
	}
	m.OutboundChunks.WithLabelValues(result).Inc()
}

func (m *Metrics) TranscriptEvent(kind string) {
	if m == nil {
		return
	}
	m.TranscriptEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) TranscriberReopened() {
	if m == nil {
		return
	}
	m.TranscriberReopens.Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) CallPlaced(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CallsPlaced.WithLabelValues(status).Inc()
}

func (m *Metrics) StatusCallback(callStatus string) {
	if m == nil {
		return
	}
	if callStatus == "" {
		callStatus = "unknown"
	}
	m.StatusCallbacks.WithLabelValues(callStatus).Inc()
}

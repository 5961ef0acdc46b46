package processor

//go:generate go run go.uber.org/mock/mockgen@latest -source=processor.go -destination=mocks_test.go -package=processor

import (
	"context"
	"errors"

	"voice-server/internal/clients/kafka"
	"voice-server/internal/clients/twilio"
	"voice-server/internal/observability"
	"voice-server/internal/voice/speech"
	"voice-server/internal/voicecall/session"
)

// CallPlacer dials outbound calls through the telephony provider
type CallPlacer interface {
	PlaceCall(ctx context.Context, req twilio.CallRequest) (string, error)
}

// EventPublisher streams call lifecycle events to downstream consumers
type EventPublisher interface {
	PublishEvent(ctx context.Context, event kafka.EventMessage) error
}

var (
	ErrMissingDestination  = errors.New("destination number is required")
	ErrCallPlacementFailed = errors.New("failed to place call")
	ErrMissingCallSid      = errors.New("call sid is required")
)

// Config carries the public URLs handed to the telephony provider and the
// per-call conversation settings.
type Config struct {
	VoiceURL          string
	StatusCallbackURL string
	MediaStreamURL    string
	Session           session.Config
}

// MediaServices are the speech and language providers shared by every call.
type MediaServices struct {
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Responder   session.Responder
}

type VoiceCallProcessor struct {
	placer    CallPlacer
	publisher EventPublisher
	media     MediaServices
	registry  *session.Registry
	cfg       Config
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New wires the call processor. publisher may be nil when event streaming is disabled.
func New(placer CallPlacer, publisher EventPublisher, media MediaServices, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *VoiceCallProcessor {
	return &VoiceCallProcessor{
		placer:    placer,
		publisher: publisher,
		media:     media,
		registry:  session.NewRegistry(),
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

package processor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"voice-server/internal/clients/kafka"
	"voice-server/internal/clients/twilio"
	"voice-server/internal/observability"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go/twiml"
)

const (
	EventCallPlaced = "call.placed"
	EventCallStatus = "call.status"
)

// StatusCallback is one progress postback from the telephony provider.
type StatusCallback struct {
	CallSid    string
	CallStatus string
	AnsweredBy string
	Duration   string
}

// PlaceCall dials to and returns the provider's call sid.
func (p *VoiceCallProcessor) PlaceCall(ctx context.Context, to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", ErrMissingDestination
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "to", Value: to})

	callSid, err := p.placer.PlaceCall(ctx, twilio.CallRequest{
		To:                to,
		VoiceURL:          p.cfg.VoiceURL,
		StatusCallbackURL: p.cfg.StatusCallbackURL,
	})
	p.metrics.CallPlaced(err)
	if err != nil {
		p.logger.Error(ctx, "failed to place outbound call", err)
		return "", fmt.Errorf("%w: %v", ErrCallPlacementFailed, err)
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: callSid})
	p.logger.Info(ctx, "outbound call placed")
	p.publish(ctx, EventCallPlaced, callSid, map[string]any{"to": to})

	return callSid, nil
}

// HandleStatus records a provider status postback. Publishing is best effort.
func (p *VoiceCallProcessor) HandleStatus(ctx context.Context, cb StatusCallback) error {
	if cb.CallSid == "" {
		return ErrMissingCallSid
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "call_sid", Value: cb.CallSid},
		observability.Field{Key: "call_status", Value: cb.CallStatus},
		observability.Field{Key: "answered_by", Value: cb.AnsweredBy},
		observability.Field{Key: "duration", Value: cb.Duration},
	)
	p.logger.Info(ctx, "call status callback received")
	p.metrics.StatusCallback(cb.CallStatus)

	p.publish(ctx, EventCallStatus, cb.CallSid, map[string]any{
		"call_status": cb.CallStatus,
		"answered_by": cb.AnsweredBy,
		"duration":    cb.Duration,
	})
	return nil
}

func (p *VoiceCallProcessor) publish(ctx context.Context, eventType, callSid string, data map[string]any) {
	if p.publisher == nil {
		return
	}
	event := kafka.EventMessage{
		ID:        uuid.NewString(),
		Type:      eventType,
		CallSID:   callSid,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.publisher.PublishEvent(ctx, event); err != nil {
		p.logger.InfoWithError(ctx, "failed to publish call event", err)
	}
}

// MediaStreamURL is the websocket address for callSid's audio, tagged so the
// session knows its call before the start frame arrives.
func (p *VoiceCallProcessor) MediaStreamURL(callSid string) string {
	if callSid == "" {
		return p.cfg.MediaStreamURL
	}
	return p.cfg.MediaStreamURL + "?" + url.Values{"CallId": {callSid}}.Encode()
}

// AnswerCall renders the TwiML document that connects an answered call to the
// media stream.
func (p *VoiceCallProcessor) AnswerCall(ctx context.Context, callSid string) (string, error) {
	stream := twiml.VoiceStream{
		Name: "call-session-" + callSid,
		Url:  p.MediaStreamURL(callSid),
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		p.logger.Error(ctx, "failed to render voice document", err)
		return "", fmt.Errorf("render voice document: %w", err)
	}
	return doc, nil
}

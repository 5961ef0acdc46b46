package session

import (
	"context"

	"voice-server/internal/voicecall/conversation"
	"voice-server/internal/voicecall/twilio"
)

// Transport is the duplex media stream to the telephony provider.
type Transport interface {
	Events() <-chan twilio.Event
	Send(msg twilio.OutboundMessage) error
	Close() error
}

// Responder produces the assistant reply for a caller utterance and records
// both in history. The bool reports whether a fallback line was used.
type Responder interface {
	Reply(ctx context.Context, history *conversation.History, utterance string) (string, bool)
}

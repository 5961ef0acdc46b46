package processor

import (
	"context"

	"voice-server/internal/voicecall/session"
)

// RunSession serves one media stream until the call ends. callID may be empty.
func (p *VoiceCallProcessor) RunSession(ctx context.Context, transport session.Transport, callID string) error {
	s := session.New(p.cfg.Session, session.Dependencies{
		Transport:   transport,
		Transcriber: p.media.Transcriber,
		Synthesizer: p.media.Synthesizer,
		Responder:   p.media.Responder,
		Registry:    p.registry,
		Logger:      p.logger,
		Metrics:     p.metrics,
	}, callID)
	return s.Run(ctx)
}

// ActiveCalls lists the call ids with a live session.
func (p *VoiceCallProcessor) ActiveCalls() []string {
	return p.registry.CallIDs()
}

// Package session runs one phone call: it binds the Twilio media stream to a
// transcription channel, turns finished caller utterances into spoken replies, and
// relays synthesized audio back onto the call one utterance at a time.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"voice-server/internal/observability"
	"voice-server/internal/voice/speech"
	"voice-server/internal/voicecall/conversation"
	"voice-server/internal/voicecall/twilio"

	"github.com/google/uuid"
)

type State int

const (
	StateAwaitingStream State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingStream:
		return "awaiting_stream"
	case StateActive:
		return "active"
	default:
		return "terminated"
	}
}

type SpeakingState int

const (
	SpeakingIdle SpeakingState = iota
	SpeakingSynthesizing
	SpeakingSending
)

func (s SpeakingState) String() string {
	switch s {
	case SpeakingSynthesizing:
		return "synthesizing"
	case SpeakingSending:
		return "sending"
	default:
		return "idle"
	}
}

type Config struct {
	Persona               string
	Greeting              string
	Transcription         speech.TranscriptionConfig
	SynthesisTimeout      time.Duration
	MaxQueuedTurns        int
	MaxTranscriberReopens int
}

type Dependencies struct {
	Transport   Transport
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Responder   Responder
	Registry    *Registry
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

type turnKind int

const (
	turnGreeting turnKind = iota
	turnReply
)

type turn struct {
	kind      turnKind
	text      string
	streamID  string
	markName  string
	utterance string
}

type turnOutcome string

const (
	outcomeGreeting  turnOutcome = "greeting"
	outcomeReply     turnOutcome = "reply"
	outcomeFallback  turnOutcome = "fallback"
	outcomeAbandoned turnOutcome = "abandoned"
	outcomeCancelled turnOutcome = "cancelled"
)

type turnUpdate struct {
	phase    SpeakingState
	finished bool
	outcome  turnOutcome
}

// Session owns one call from media connection to termination. All state below
// the mutex is only written by the Run goroutine.
type Session struct {
	id      string
	cfg     Config
	deps    Dependencies
	history *conversation.History

	mu       sync.Mutex
	state    State
	speaking SpeakingState
	callID   string
	streamID string

	transcription     speech.Transcription
	transcriptEvents  <-chan speech.TranscriptEvent
	transcriptErrors  <-chan error
	transcriberReopen int

	pending    []string
	turnActive bool
	turnCancel context.CancelFunc
	turnWG     sync.WaitGroup
	updates    chan turnUpdate
}

// New creates a session for a freshly accepted media connection. callID may be
// empty; the start frame supplies it.
func New(cfg Config, deps Dependencies, callID string) *Session {
	return &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		deps:    deps,
		history: conversation.NewHistory(cfg.Persona),
		state:   StateAwaitingStream,
		callID:  callID,
		updates: make(chan turnUpdate, 4),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Speaking() SpeakingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *Session) CallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

func (s *Session) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamID
}

// History exposes the dialogue for inspection.
func (s *Session) History() []conversation.Message {
	return s.history.Messages()
}

func (s *Session) logContext(ctx context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := []observability.Field{{Key: "session_id", Value: s.id}}
	if s.callID != "" {
		fields = append(fields, observability.Field{Key: "call_id", Value: s.callID})
	}
	if s.streamID != "" {
		fields = append(fields, observability.Field{Key: "stream_id", Value: s.streamID})
	}
	return observability.WithFields(ctx, fields...)
}

// Run processes the call until the stream stops, the transport closes, or ctx
// ends. Teardown always completes before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	s.deps.Metrics.SessionStarted()
	s.deps.Logger.Info(s.logContext(ctx), "Call session started")

	defer func() {
		s.terminate(ctx)
		s.deps.Metrics.SessionEnded(time.Since(started))
	}()

	events := s.deps.Transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				s.deps.Logger.Info(s.logContext(ctx), "Media stream closed")
				return nil
			}
			if stop := s.handleTransportEvent(ctx, ev); stop {
				return nil
			}

		case tev, ok := <-s.transcriptEvents:
			if !ok {
				s.handleTranscriptionClosed(ctx)
				continue
			}
			s.handleTranscript(ctx, tev)

		case err, ok := <-s.transcriptErrors:
			if !ok {
				s.transcriptErrors = nil
				continue
			}
			s.deps.Logger.InfoWithError(s.logContext(ctx), "Transcription provider error", err)

		case upd := <-s.updates:
			s.handleTurnUpdate(ctx, upd)
		}
	}
}

func (s *Session) handleTransportEvent(ctx context.Context, ev twilio.Event) bool {
	switch ev.Type {
	case twilio.EventConnected:
		s.deps.Logger.Debug(s.logContext(ctx), "Media stream connected")

	case twilio.EventStart:
		s.handleStart(ctx, ev)

	case twilio.EventMedia:
		s.handleMedia(ctx, ev.Payload)

	case twilio.EventStop:
		s.deps.Logger.Info(s.logContext(ctx), "Media stream stopped")
		return true

	case twilio.EventMark:
		s.deps.Logger.Info(s.logContext(ctx), "Playback acknowledged",
			observability.Field{Key: "mark", Value: ev.MarkName})

	case twilio.EventDTMF:
		s.deps.Logger.Info(s.logContext(ctx), "Caller pressed a key",
			observability.Field{Key: "digit", Value: ev.Digit})

	case twilio.EventDecodeError:
		s.deps.Metrics.DecodeError()
		s.deps.Logger.Warn(s.logContext(ctx), "Skipping undecodable media frame",
			observability.Field{Key: "error", Value: errString(ev.Err)})
	}
	return false
}

func (s *Session) handleStart(ctx context.Context, ev twilio.Event) {
	if s.State() != StateAwaitingStream {
		s.deps.Logger.Warn(s.logContext(ctx), "Ignoring repeated start frame",
			observability.Field{Key: "stream_sid", Value: ev.StreamSID})
		return
	}

	s.mu.Lock()
	s.streamID = ev.StreamSID
	switch {
	case ev.CallSID != "":
		s.callID = ev.CallSID
	case ev.CustomParameters["CallId"] != "" && s.callID == "":
		s.callID = ev.CustomParameters["CallId"]
	}
	s.state = StateActive
	callID := s.callID
	s.mu.Unlock()

	s.deps.Registry.register(callID, s)
	s.deps.Logger.Info(s.logContext(ctx), "Media stream started")

	if err := s.openTranscription(ctx); err != nil {
		s.deps.Logger.Error(s.logContext(ctx), "Failed to open transcription channel", err)
	}

	s.submit(ctx, turn{kind: turnGreeting, text: s.cfg.Greeting})
}

func (s *Session) openTranscription(ctx context.Context) error {
	tr, err := s.deps.Transcriber.Open(ctx, s.cfg.Transcription)
	if err != nil {
		return err
	}
	s.transcription = tr
	s.transcriptEvents = tr.Events()
	s.transcriptErrors = tr.Errors()
	return nil
}

func (s *Session) closeTranscription(ctx context.Context) {
	if s.transcription == nil {
		return
	}
	if err := s.transcription.Close(); err != nil {
		s.deps.Logger.InfoWithError(s.logContext(ctx), "Transcription close failed", err)
	}
	s.transcription = nil
	s.transcriptEvents = nil
	s.transcriptErrors = nil
}

func (s *Session) handleMedia(ctx context.Context, payload []byte) {
	if s.State() != StateActive {
		s.deps.Logger.Debug(s.logContext(ctx), "Dropping media received before stream start")
		return
	}
	if s.transcription == nil {
		return
	}
	if err := s.transcription.Push(payload); err != nil && !errors.Is(err, speech.ErrClosed) {
		s.deps.Logger.Debug(s.logContext(ctx), "Dropping caller audio",
			observability.Field{Key: "error", Value: err.Error()})
	}
}

// handleTranscriptionClosed reopens a provider connection that ended on its own,
// up to the configured number of times.
func (s *Session) handleTranscriptionClosed(ctx context.Context) {
	s.closeTranscription(ctx)
	if ctx.Err() != nil {
		return
	}

	if s.transcriberReopen >= s.cfg.MaxTranscriberReopens {
		s.deps.Logger.Warn(s.logContext(ctx), "Transcription channel lost, reopen limit reached",
			observability.Field{Key: "reopens", Value: s.transcriberReopen})
		return
	}

	s.transcriberReopen++
	s.deps.Metrics.TranscriberReopened()
	s.deps.Logger.Warn(s.logContext(ctx), "Transcription channel lost, reopening",
		observability.Field{Key: "attempt", Value: s.transcriberReopen})

	if err := s.openTranscription(ctx); err != nil {
		s.deps.Logger.Error(s.logContext(ctx), "Failed to reopen transcription channel", err)
	}
}

func (s *Session) handleTranscript(ctx context.Context, ev speech.TranscriptEvent) {
	kind := ev.Kind.String()
	if ev.EndsTurn() {
		kind = "speech_final"
	}
	s.deps.Metrics.TranscriptEvent(kind)

	if !ev.EndsTurn() {
		s.deps.Logger.Debug(s.logContext(ctx), "Transcript",
			observability.Field{Key: "kind", Value: ev.Kind.String()},
			observability.Field{Key: "text", Value: ev.Text})
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	s.deps.Logger.Info(s.logContext(ctx), "Caller finished speaking",
		observability.Field{Key: "text", Value: text},
		observability.Field{Key: "confidence", Value: ev.Confidence})

	s.submit(ctx, turn{kind: turnReply, utterance: text})
}

// submit starts t now or queues it behind the utterance in flight.
func (s *Session) submit(ctx context.Context, t turn) {
	if !s.turnActive {
		s.startTurn(ctx, t)
		return
	}

	if s.cfg.MaxQueuedTurns > 0 && len(s.pending) >= s.cfg.MaxQueuedTurns {
		s.deps.Logger.Warn(s.logContext(ctx), "Turn queue full, dropping utterance",
			observability.Field{Key: "text", Value: t.utterance})
		return
	}
	s.pending = append(s.pending, t.utterance)
}

func (s *Session) startTurn(ctx context.Context, t turn) {
	t.streamID = s.StreamID()
	t.markName = "utterance-" + uuid.NewString()

	turnCtx, cancel := context.WithCancel(ctx)
	s.turnActive = true
	s.turnCancel = cancel
	s.setSpeaking(SpeakingSynthesizing)

	s.turnWG.Add(1)
	go func() {
		defer s.turnWG.Done()
		outcome := s.runTurn(turnCtx, t)
		s.notify(turnCtx, turnUpdate{finished: true, outcome: outcome})
	}()
}

func (s *Session) handleTurnUpdate(ctx context.Context, upd turnUpdate) {
	if !upd.finished {
		s.setSpeaking(upd.phase)
		return
	}

	s.turnActive = false
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	s.setSpeaking(SpeakingIdle)
	s.deps.Metrics.Turn(string(upd.outcome))

	if len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.startTurn(ctx, turn{kind: turnReply, utterance: next})
	}
}

func (s *Session) setSpeaking(state SpeakingState) {
	s.mu.Lock()
	s.speaking = state
	s.mu.Unlock()
}

// notify hands a progress update to the event loop unless the turn was cancelled.
func (s *Session) notify(ctx context.Context, upd turnUpdate) {
	select {
	case s.updates <- upd:
	case <-ctx.Done():
	}
}

// runTurn generates (for replies), synthesizes and relays one utterance, then
// sends the mark. A cancelled turn sends no mark.
func (s *Session) runTurn(ctx context.Context, t turn) turnOutcome {
	ctx = s.logContext(ctx)

	outcome := outcomeGreeting
	text := t.text
	if t.kind == turnReply {
		reply, fallback := s.deps.Responder.Reply(ctx, s.history, t.utterance)
		text = reply
		outcome = outcomeReply
		if fallback {
			outcome = outcomeFallback
		}
	}
	if ctx.Err() != nil {
		return outcomeCancelled
	}

	if err := s.speak(ctx, t, text); err != nil {
		if ctx.Err() != nil {
			return outcomeCancelled
		}
		s.deps.Logger.Error(ctx, "Synthesis failed, abandoning utterance", err)
		outcome = outcomeAbandoned
	}

	if ctx.Err() != nil {
		return outcomeCancelled
	}
	if err := s.deps.Transport.Send(twilio.MarkMessage(t.streamID, t.markName)); err != nil {
		s.deps.Logger.Warn(ctx, "Failed to send utterance mark",
			observability.Field{Key: "mark", Value: t.markName},
			observability.Field{Key: "error", Value: err.Error()})
	}
	return outcome
}

// speak streams synthesized audio to the caller. Chunks the transport refuses are
// dropped, never retried.
func (s *Session) speak(ctx context.Context, t turn, text string) error {
	synthCtx := ctx
	if s.cfg.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, s.cfg.SynthesisTimeout)
		defer cancel()
	}

	stream, err := s.deps.Synthesizer.Synthesize(synthCtx, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	sending := false
	for {
		chunk, err := stream.Recv(synthCtx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk.Audio) == 0 {
			continue
		}

		if !sending {
			sending = true
			s.notify(ctx, turnUpdate{phase: SpeakingSending})
		}

		if err := s.deps.Transport.Send(twilio.MediaMessage(t.streamID, chunk.Audio)); err != nil {
			s.deps.Metrics.OutboundChunk(false)
			s.deps.Logger.Warn(ctx, "Dropping synthesized audio chunk",
				observability.Field{Key: "bytes", Value: len(chunk.Audio)},
				observability.Field{Key: "error", Value: err.Error()})
			continue
		}
		s.deps.Metrics.OutboundChunk(true)
	}
}

// terminate cancels in-flight work, waits for it, releases the transcription
// channel and resets history. Safe to call more than once.
func (s *Session) terminate(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	callID := s.callID
	s.mu.Unlock()

	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	s.turnWG.Wait()
	s.turnActive = false
	s.pending = nil
	s.setSpeaking(SpeakingIdle)

	s.closeTranscription(ctx)
	s.history.Reset()

	if err := s.deps.Transport.Close(); err != nil {
		s.deps.Logger.InfoWithError(s.logContext(ctx), "Media stream close failed", err)
	}
	s.deps.Registry.unregister(callID, s)
	s.deps.Logger.Info(s.logContext(ctx), "Call session terminated")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package speech holds the provider-neutral types shared by the transcription and
// synthesis clients and the call session that consumes them.
package speech

import (
	"context"
	"errors"
)

// Telephony audio parameters. Twilio media streams carry 8 kHz mono mu-law and both
// providers are configured to accept and produce exactly that.
const (
	EncodingMulaw   = "mulaw"
	SampleRateMulaw = 8000
	ChannelsMono    = 1
	DefaultLanguage = "en-US"
)

// ErrClosed is returned when pushing audio into a channel that has been finished.
var ErrClosed = errors.New("speech: channel closed")

// ErrQueueFull is returned by non-blocking pushes when the outbound buffer is saturated.
var ErrQueueFull = errors.New("speech: queue full")

// TranscriptionConfig is fixed for the lifetime of a transcription channel.
type TranscriptionConfig struct {
	Model          string
	Encoding       string
	SampleRate     int
	Channels       int
	Language       string
	Punctuate      bool
	InterimResults bool
}

// TelephonyTranscription returns the configuration used for phone audio.
func TelephonyTranscription(model, language string) TranscriptionConfig {
	if language == "" {
		language = DefaultLanguage
	}
	return TranscriptionConfig{
		Model:          model,
		Encoding:       EncodingMulaw,
		SampleRate:     SampleRateMulaw,
		Channels:       ChannelsMono,
		Language:       language,
		Punctuate:      true,
		InterimResults: true,
	}
}

// TranscriptKind distinguishes advisory interim hypotheses from finalized segments.
type TranscriptKind int

const (
	TranscriptInterim TranscriptKind = iota
	TranscriptFinal
)

func (k TranscriptKind) String() string {
	if k == TranscriptFinal {
		return "final"
	}
	return "interim"
}

// TranscriptEvent is one transcript result emitted by a transcription channel.
type TranscriptEvent struct {
	Kind        TranscriptKind
	Text        string
	SpeechFinal bool
	Confidence  float64
}

// EndsTurn reports whether the event marks the caller as done speaking.
func (e TranscriptEvent) EndsTurn() bool {
	return e.Kind == TranscriptFinal && e.SpeechFinal
}

// Transcription is one open streaming connection to a speech-to-text provider.
type Transcription interface {
	// Push queues a chunk of caller audio. It never blocks.
	Push(chunk []byte) error
	// Events is closed when the provider connection ends.
	Events() <-chan TranscriptEvent
	// Errors reports provider-side failures without ending the call.
	Errors() <-chan error
	// Close performs the provider shutdown handshake. Safe to call repeatedly.
	Close() error
}

// Transcriber opens transcription channels.
type Transcriber interface {
	Open(ctx context.Context, cfg TranscriptionConfig) (Transcription, error)
}

// WordTiming is optional alignment metadata attached to a synthesized chunk.
type WordTiming struct {
	Chars      []string
	StartMs    []int
	DurationMs []int
}

// AudioChunk is one piece of synthesized audio in the telephony wire encoding.
type AudioChunk struct {
	Audio  []byte
	Timing *WordTiming
}

// AudioStream is a lazy, finite, non-restartable sequence of synthesized audio.
// Recv returns io.EOF once the utterance is exhausted.
type AudioStream interface {
	Recv(ctx context.Context) (AudioChunk, error)
	Close() error
}

// Synthesizer turns an utterance into an AudioStream.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (AudioStream, error)
}

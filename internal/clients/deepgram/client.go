// Package deepgram streams caller audio to Deepgram's live transcription API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"voice-server/internal/observability"
	"voice-server/internal/voice/speech"

	"github.com/gorilla/websocket"
)

const (
	defaultListenURL         = "wss://api.deepgram.com/v1/listen"
	defaultKeepAliveInterval = 5 * time.Second
	defaultCloseTimeout      = 3 * time.Second
	audioQueueSize           = 512
	eventBufferSize          = 64
	errorBufferSize          = 8
)

var ErrMissingAPIKey = errors.New("deepgram API key is required")

type Client struct {
	apiKey            string
	listenURL         string
	keepAliveInterval time.Duration
	closeTimeout      time.Duration
	dialer            *websocket.Dialer
	logger            *observability.Logger
}

func NewClient(apiKey string, logger *observability.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		apiKey:            apiKey,
		listenURL:         defaultListenURL,
		keepAliveInterval: defaultKeepAliveInterval,
		closeTimeout:      defaultCloseTimeout,
		dialer:            websocket.DefaultDialer,
		logger:            logger,
	}, nil
}

// WithListenURL points the client at a different endpoint, used by tests.
func (c *Client) WithListenURL(u string) *Client {
	c.listenURL = u
	return c
}

// WithKeepAlive overrides how often an idle stream is kept open.
func (c *Client) WithKeepAlive(d time.Duration) *Client {
	c.keepAliveInterval = d
	return c
}

func (c *Client) buildURL(cfg speech.TranscriptionConfig) (string, error) {
	u, err := url.Parse(c.listenURL)
	if err != nil {
		return "", fmt.Errorf("parse listen url: %w", err)
	}
	q := u.Query()
	if cfg.Model != "" {
		q.Set("model", cfg.Model)
	}
	q.Set("encoding", cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.Channels))
	q.Set("language", cfg.Language)
	q.Set("punctuate", strconv.FormatBool(cfg.Punctuate))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials a live transcription stream. The stream is closed when ctx ends.
func (c *Client) Open(ctx context.Context, cfg speech.TranscriptionConfig) (speech.Transcription, error) {
	endpoint, err := c.buildURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial deepgram: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	s := &stream{
		conn:         conn,
		logger:       c.logger,
		closeTimeout: c.closeTimeout,
		audio:        make(chan []byte, audioQueueSize),
		events:       make(chan speech.TranscriptEvent, eventBufferSize),
		errs:         make(chan error, errorBufferSize),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
		readerDone:   make(chan struct{}),
	}

	go s.writeLoop(ctx, c.keepAliveInterval)
	go s.readLoop(ctx)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	c.logger.Info(ctx, "Deepgram stream opened",
		observability.Field{Key: "model", Value: cfg.Model},
		observability.Field{Key: "language", Value: cfg.Language},
	)
	return s, nil
}

type controlMessage struct {
	Type string `json:"type"`
}

type stream struct {
	conn         *websocket.Conn
	logger       *observability.Logger
	closeTimeout time.Duration

	audio  chan []byte
	events chan speech.TranscriptEvent
	errs   chan error

	done       chan struct{}
	writerDone chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
}

func (s *stream) Push(chunk []byte) error {
	select {
	case <-s.done:
		return speech.ErrClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	default:
		return speech.ErrQueueFull
	}
}

func (s *stream) Events() <-chan speech.TranscriptEvent { return s.events }

func (s *stream) Errors() <-chan error { return s.errs }

// Close flushes queued audio, asks Deepgram to finalize, and waits briefly for the
// provider to hang up before tearing the socket down.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.writerDone

		select {
		case <-s.readerDone:
		case <-time.After(s.closeTimeout):
		}
		s.conn.Close()
		<-s.readerDone
	})
	return nil
}

func (s *stream) reportError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *stream) writeLoop(ctx context.Context, keepAlive time.Duration) {
	defer close(s.writerDone)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.reportError(fmt.Errorf("send audio: %w", err))
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteJSON(controlMessage{Type: "KeepAlive"}); err != nil {
				s.reportError(fmt.Errorf("send keepalive: %w", err))
				return
			}
		case <-s.done:
			s.flushQueued()
			if err := s.conn.WriteJSON(controlMessage{Type: "CloseStream"}); err != nil {
				s.logger.InfoWithError(ctx, "Failed to send Deepgram CloseStream", err)
			}
			return
		}
	}
}

func (s *stream) flushQueued() {
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		default:
			return
		}
	}
}

type resultsMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResults maps a provider message to a transcript event. ok is false for
// messages that carry no transcript text.
func parseResults(data []byte) (speech.TranscriptEvent, bool, error) {
	var msg resultsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return speech.TranscriptEvent{}, false, fmt.Errorf("decode deepgram message: %w", err)
	}
	if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
		return speech.TranscriptEvent{}, false, nil
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return speech.TranscriptEvent{}, false, nil
	}
	kind := speech.TranscriptInterim
	if msg.IsFinal {
		kind = speech.TranscriptFinal
	}
	return speech.TranscriptEvent{
		Kind:        kind,
		Text:        alt.Transcript,
		SpeechFinal: msg.IsFinal && msg.SpeechFinal,
		Confidence:  alt.Confidence,
	}, true, nil
}

func (s *stream) readLoop(ctx context.Context) {
	defer close(s.readerDone)
	defer close(s.events)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.reportError(fmt.Errorf("deepgram stream ended: %w", err))
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, ok, err := parseResults(data)
		if err != nil {
			s.logger.Warn(ctx, "Skipping undecodable Deepgram message",
				observability.Field{Key: "error", Value: err.Error()})
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
}

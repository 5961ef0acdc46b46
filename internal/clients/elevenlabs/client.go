// Package elevenlabs synthesizes speech over the ElevenLabs stream-input websocket,
// producing 8 kHz mu-law audio that can be relayed to a phone call unchanged.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"voice-server/internal/observability"
	"voice-server/internal/voice/audio"
	"voice-server/internal/voice/speech"

	"github.com/gorilla/websocket"
)

const (
	defaultStreamURL    = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	defaultModelID      = "eleven_flash_v2_5"
	outputFormatMulaw8k = "ulaw_8000"
	writeTimeout        = 5 * time.Second
)

var (
	ErrMissingAPIKey  = errors.New("elevenlabs API key is required")
	ErrMissingVoiceID = errors.New("elevenlabs voice id is required")
	ErrEmptyText      = errors.New("nothing to synthesize")
)

type Client struct {
	apiKey    string
	voiceID   string
	modelID   string
	streamURL string
	dialer    *websocket.Dialer
	logger    *observability.Logger
}

func NewClient(apiKey, voiceID, modelID string, logger *observability.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, ErrMissingVoiceID
	}
	if modelID == "" {
		modelID = defaultModelID
	}
	return &Client{
		apiKey:    strings.TrimSpace(apiKey),
		voiceID:   strings.TrimSpace(voiceID),
		modelID:   modelID,
		streamURL: defaultStreamURL,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}, nil
}

// WithStreamURL overrides the endpoint template. {voice_id} is substituted.
func (c *Client) WithStreamURL(u string) *Client {
	if u = strings.TrimSpace(u); u != "" {
		c.streamURL = u
	}
	return c
}

func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(strings.ReplaceAll(c.streamURL, "{voice_id}", url.PathEscape(c.voiceID)))
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs stream url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", c.modelID)
	q.Set("output_format", outputFormatMulaw8k)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type textFrame struct {
	Text          string         `json:"text"`
	Flush         bool           `json:"flush,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// Synthesize opens a stream for one utterance. Audio is pulled lazily through Recv.
func (c *Client) Synthesize(ctx context.Context, text string) (speech.AudioStream, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	endpoint, err := c.buildURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("xi-api-key", c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial elevenlabs: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial elevenlabs: %w", err)
	}

	frames := []textFrame{
		{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.8}},
		{Text: text + " ", Flush: true},
		{Text: ""},
	}
	for _, f := range frames {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(f); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send text to elevenlabs: %w", err)
		}
	}

	c.logger.Debug(ctx, "ElevenLabs synthesis started",
		observability.Field{Key: "characters", Value: len(text)})

	return &stream{conn: conn}, nil
}

type alignment struct {
	Chars            []string `json:"chars"`
	CharStartTimesMs []int    `json:"charStartTimesMs"`
	CharDurationsMs  []int    `json:"charDurationsMs"`
}

type audioMessage struct {
	Audio               *string    `json:"audio"`
	IsFinal             bool       `json:"isFinal"`
	NormalizedAlignment *alignment `json:"normalizedAlignment"`
	Alignment           *alignment `json:"alignment"`
	Error               string     `json:"error"`
	Message             string     `json:"message"`
}

func (m audioMessage) timing() *speech.WordTiming {
	a := m.NormalizedAlignment
	if a == nil {
		a = m.Alignment
	}
	if a == nil || len(a.Chars) == 0 {
		return nil
	}
	return &speech.WordTiming{Chars: a.Chars, StartMs: a.CharStartTimesMs, DurationMs: a.CharDurationsMs}
}

type stream struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	finished  bool
	closeOnce sync.Once
}

// Recv blocks until the next audio chunk arrives. It returns io.EOF once the
// provider marks the utterance final.
func (s *stream) Recv(ctx context.Context) (speech.AudioChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return speech.AudioChunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return speech.AudioChunk{}, err
	}

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finished = true
			if ctxErr := ctx.Err(); ctxErr != nil {
				return speech.AudioChunk{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return speech.AudioChunk{}, io.EOF
			}
			return speech.AudioChunk{}, fmt.Errorf("read elevenlabs audio: %w", err)
		}

		var msg audioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			s.finished = true
			return speech.AudioChunk{}, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
		}

		if msg.Audio != nil && *msg.Audio != "" {
			pcm, err := audio.Base64ToBytes(*msg.Audio)
			if err != nil {
				s.finished = true
				return speech.AudioChunk{}, fmt.Errorf("decode elevenlabs audio: %w", err)
			}
			if msg.IsFinal {
				s.finished = true
			}
			return speech.AudioChunk{Audio: pcm, Timing: msg.timing()}, nil
		}

		if msg.IsFinal {
			s.finished = true
			return speech.AudioChunk{}, io.EOF
		}
	}
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

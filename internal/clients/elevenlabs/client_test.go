package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-server/internal/observability"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElevenLabs struct {
	mu      sync.Mutex
	path    string
	query   map[string]string
	apiKey  string
	frames  []textFrame
	replies []string
	hold    bool
}

func (f *fakeElevenLabs) serve(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.path = r.URL.Path
		f.apiKey = r.Header.Get("xi-api-key")
		f.query = map[string]string{}
		for k := range r.URL.Query() {
			f.query[k] = r.URL.Query().Get(k)
		}
		f.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 3; i++ {
			var frame textFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			f.mu.Lock()
			f.frames = append(f.frames, frame)
			f.mu.Unlock()
		}

		for _, r := range f.replies {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(r)); err != nil {
				return
			}
		}
		if f.hold {
			_, _, _ = conn.ReadMessage()
		}
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("xi-key", "voice-1", "", observability.NewNopLogger())
	require.NoError(t, err)
	return c.WithStreamURL("ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/text-to-speech/{voice_id}/stream-input")
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()
	_, err := NewClient("", "v", "", observability.NewNopLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewClient("k", " ", "", observability.NewNopLogger())
	assert.ErrorIs(t, err, ErrMissingVoiceID)
}

func TestSynthesizeStreamsChunksThenEOF(t *testing.T) {
	t.Parallel()
	fake := &fakeElevenLabs{replies: []string{
		`{"audio":"AQID","isFinal":false,"normalizedAlignment":{"chars":["H","i"],"charStartTimesMs":[0,80],"charDurationsMs":[80,60]}}`,
		`{"audio":null,"isFinal":false}`,
		`{"audio":"BAU=","isFinal":false}`,
		`{"isFinal":true}`,
	}}
	srv := fake.serve(t)
	defer srv.Close()

	ctx := context.Background()
	s, err := newTestClient(t, srv).Synthesize(ctx, "Hi there")
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, first.Audio)
	require.NotNil(t, first.Timing)
	assert.Equal(t, []string{"H", "i"}, first.Timing.Chars)
	assert.Equal(t, []int{0, 80}, first.Timing.StartMs)

	second, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, second.Audio)
	assert.Nil(t, second.Timing)

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "/v1/text-to-speech/voice-1/stream-input", fake.path)
	assert.Equal(t, "xi-key", fake.apiKey)
	assert.Equal(t, "ulaw_8000", fake.query["output_format"])
	assert.Equal(t, "eleven_flash_v2_5", fake.query["model_id"])
	require.Len(t, fake.frames, 3)
	assert.Equal(t, " ", fake.frames[0].Text)
	assert.Equal(t, "Hi there ", fake.frames[1].Text)
	assert.True(t, fake.frames[1].Flush)
	assert.Equal(t, "", fake.frames[2].Text)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	t.Parallel()
	c, err := NewClient("k", "v", "", observability.NewNopLogger())
	require.NoError(t, err)
	_, err = c.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestRecvSurfacesProviderError(t *testing.T) {
	t.Parallel()
	fake := &fakeElevenLabs{replies: []string{`{"error":"quota_exceeded","message":"out of credits"}`}}
	srv := fake.serve(t)
	defer srv.Close()

	s, err := newTestClient(t, srv).Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota_exceeded")
}

func TestRecvHonoursCancellation(t *testing.T) {
	t.Parallel()
	fake := &fakeElevenLabs{hold: true}
	srv := fake.serve(t)
	defer srv.Close()

	s, err := newTestClient(t, srv).Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTextFrameOmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(textFrame{Text: ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":""}`, string(data))
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voice-server/internal/observability"
	"voice-server/internal/voicecall/conversation"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestNewChatClientRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewChatClient("", "gpt-4o-mini", observability.NewNopLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleteSendsHistoryAndReturnsContent(t *testing.T) {
	t.Parallel()
	var seen chatRequest
	srv := newTestServer(t, http.StatusOK, `{
		"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Where to?"}}],
		"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}
	}`, &seen)
	defer srv.Close()

	c, err := NewChatClient("sk-test", "gpt-4o-mini", observability.NewNopLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider())

	reply, err := c.Complete(context.Background(), []conversation.Message{
		{Role: conversation.RoleSystem, Content: "persona"},
		{Role: conversation.RoleUser, Content: "book a flight"},
		{Role: conversation.RoleAssistant, Content: "ok"},
	}, 150)
	require.NoError(t, err)
	assert.Equal(t, "Where to?", reply)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	assert.Equal(t, 150, seen.MaxTokens)
	require.Len(t, seen.Messages, 3)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "user", seen.Messages[1].Role)
	assert.Equal(t, "assistant", seen.Messages[2].Role)
	assert.Equal(t, "book a flight", seen.Messages[1].Content)
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)
	defer srv.Close()

	c, err := NewChatClient("sk-test", "m", observability.NewNopLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestCompleteProviderError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)
	defer srv.Close()

	c, err := NewChatClient("sk-test", "m", observability.NewNopLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), []conversation.Message{{Role: conversation.RoleUser, Content: "hi"}}, 10)
	assert.Error(t, err)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-server/internal/observability"
	voiceCallHandler "voice-server/internal/voicecall/handler"
	"voice-server/internal/voicecall/processor"
	"voice-server/internal/voicecall/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProcessor struct {
	placed []string
}

func (s *stubProcessor) PlaceCall(_ context.Context, to string) (string, error) {
	s.placed = append(s.placed, to)
	return "CA1", nil
}

func (s *stubProcessor) HandleStatus(context.Context, processor.StatusCallback) error { return nil }

func (s *stubProcessor) AnswerCall(context.Context, string) (string, error) {
	return "<Response></Response>", nil
}

func (s *stubProcessor) RunSession(context.Context, session.Transport, string) error { return nil }

func (s *stubProcessor) ActiveCalls() []string { return nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestEngine(proc *stubProcessor, limit gin.HandlerFunc, health HealthChecker) *gin.Engine {
	r := gin.New()
	a := New(r.Group(""), voiceCallHandler.New(proc, observability.NewNopLogger()), limit, health)
	a.RegisterRoutes()
	return r
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		health HealthChecker
		status int
	}{
		{name: "no backing service", health: nil, status: http.StatusOK},
		{name: "redis reachable", health: pingFunc(func(context.Context) error { return nil }), status: http.StatusOK},
		{name: "redis down", health: pingFunc(func(context.Context) error { return errors.New("dial tcp") }), status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestEngine(&stubProcessor{}, nil, tt.health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRegisterRoutes_CreateCallLimiter(t *testing.T) {
	t.Parallel()
	proc := &stubProcessor{}
	limit := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
	r := newTestEngine(proc, limit, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/phone/calls", strings.NewReader(`{"to":"+15551234567"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, proc.placed)
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()
	proc := &stubProcessor{}
	r := newTestEngine(proc, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/phone/calls", strings.NewReader(`{"to":"+15551234567"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"+15551234567"}, proc.placed)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/phone/voice?CallSid=CA1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

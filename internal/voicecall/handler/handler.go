package handler

//go:generate go run go.uber.org/mock/mockgen@latest -source=handler.go -destination=mocks_test.go -package=handler

import (
	"context"
	"net/http"

	"voice-server/internal/observability"
	"voice-server/internal/voicecall/processor"
	"voice-server/internal/voicecall/session"

	"github.com/gorilla/websocket"
)

// CallProcessor is the call-control surface the HTTP layer drives
type CallProcessor interface {
	PlaceCall(ctx context.Context, to string) (string, error)
	HandleStatus(ctx context.Context, cb processor.StatusCallback) error
	AnswerCall(ctx context.Context, callSid string) (string, error)
	RunSession(ctx context.Context, transport session.Transport, callID string) error
	ActiveCalls() []string
}

type Handler struct {
	processor CallProcessor
	logger    *observability.Logger
}

func New(processor CallProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// upgrader is a shared WebSocket upgrader. Twilio does not send an Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

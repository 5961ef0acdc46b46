package handler

import (
	"context"
	"errors"
	"net/http"

	"voice-server/internal/observability"
	"voice-server/internal/voicecall/twilio"

	"github.com/gin-gonic/gin"
)

// HandleMediaStream upgrades Twilio's media stream and runs the call session on it
// until the call ends.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()
	callID := c.Query("CallId")
	ctx = observability.WithFields(ctx, observability.Field{Key: "call_id", Value: callID})

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	conn := twilio.NewConn(ws, h.logger)
	conn.Start(ctx)
	defer conn.Close()

	h.logger.Info(ctx, "Twilio media stream connected")

	if err := h.processor.RunSession(ctx, conn, callID); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error(ctx, "call session ended with error", err)
		return
	}
	h.logger.Info(ctx, "Twilio media stream closed")
}

// HandleStreamStatus reports the media stream endpoint and the calls it is serving
func (h *Handler) HandleStreamStatus(c *gin.Context) {
	calls := h.processor.ActiveCalls()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": len(calls),
		"calls":           calls,
	})
}

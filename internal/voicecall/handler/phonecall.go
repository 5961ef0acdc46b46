package handler

import (
	"net/http"

	"voice-server/internal/apierrors"
	"voice-server/internal/observability"
	"voice-server/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
)

// CreateCallRequest represents the HTTP request for placing an outbound call
type CreateCallRequest struct {
	To string `json:"to" binding:"required,e164"`
}

type CreateCallResponse struct {
	CallSid string `json:"callSid"`
}

// StatusCallbackRequest is Twilio's form-encoded call progress postback
type StatusCallbackRequest struct {
	CallSid      string `form:"CallSid"`
	CallStatus   string `form:"CallStatus"`
	AnsweredBy   string `form:"AnsweredBy"`
	CallDuration string `form:"CallDuration"`
}

// HandleCreateCall places an outbound call
func (h *Handler) HandleCreateCall(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	callSid, err := h.processor.PlaceCall(ctx, req.To)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateCallResponse{CallSid: callSid})
}

// HandleStatusCallback acknowledges every postback so Twilio never retries.
func (h *Handler) HandleStatusCallback(c *gin.Context) {
	ctx := c.Request.Context()

	var req StatusCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn(ctx, "unreadable status callback",
			observability.Field{Key: "error", Value: err.Error()})
	}

	err := h.processor.HandleStatus(ctx, processor.StatusCallback{
		CallSid:    req.CallSid,
		CallStatus: req.CallStatus,
		AnsweredBy: req.AnsweredBy,
		Duration:   req.CallDuration,
	})
	if err != nil {
		h.logger.Warn(ctx, "status callback rejected",
			observability.Field{Key: "error", Value: err.Error()})
	}

	c.String(http.StatusOK, "Status Callback Received")
}

// HandleVoice returns the TwiML that connects an answered call to the media stream
func (h *Handler) HandleVoice(c *gin.Context) {
	ctx := c.Request.Context()

	callSid := c.Query("CallSid")
	if callSid == "" {
		callSid = c.PostForm("CallSid")
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: callSid})

	doc, err := h.processor.AnswerCall(ctx, callSid)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	h.logger.Debug(ctx, "voice document served")
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}

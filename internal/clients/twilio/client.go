// Package twilio places outbound calls through the Twilio REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"

	"voice-server/internal/config"
	"voice-server/internal/observability"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	ringTimeoutSeconds      = 30
	machineDetectionSeconds = 30
)

var ErrMissingCallSid = errors.New("twilio returned a call without a sid")

// StatusCallbackEvents are the progress events Twilio posts back for each call.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

type callCreator interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

type Client struct {
	api    callCreator
	from   string
	logger *observability.Logger
}

func NewClient(cfg config.TwilioConfig, logger *observability.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{api: rest.Api, from: cfg.PhoneNumber, logger: logger}
}

// CallRequest describes one outbound call.
type CallRequest struct {
	To                string
	VoiceURL          string
	StatusCallbackURL string
}

func (c *Client) buildParams(req CallRequest) *twilioApi.CreateCallParams {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(c.from)
	params.SetUrl(req.VoiceURL)
	params.SetMethod("GET")
	params.SetStatusCallback(req.StatusCallbackURL)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent(StatusCallbackEvents)
	params.SetTimeout(ringTimeoutSeconds)
	params.SetMachineDetection("Enable")
	params.SetMachineDetectionTimeout(machineDetectionSeconds)
	return params
}

// PlaceCall dials req.To and returns the new call's sid.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (string, error) {
	call, err := c.api.CreateCall(c.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", ErrMissingCallSid
	}

	c.logger.Info(ctx, "Outbound call created",
		observability.Field{Key: "call_sid", Value: *call.Sid},
	)
	return *call.Sid, nil
}

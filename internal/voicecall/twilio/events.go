package twilio

import (
	"encoding/json"
	"errors"
	"fmt"

	"voice-server/internal/voice/audio"
)

var (
	ErrMalformedFrame = errors.New("malformed media stream frame")
	ErrUnknownEvent   = errors.New("unknown media stream event")
)

// EventType identifies a decoded inbound frame.
type EventType int

const (
	EventConnected EventType = iota
	EventStart
	EventMedia
	EventStop
	EventMark
	EventDTMF
	// EventDecodeError carries a frame that could not be decoded. The stream continues.
	EventDecodeError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventStart:
		return "start"
	case EventMedia:
		return "media"
	case EventStop:
		return "stop"
	case EventMark:
		return "mark"
	case EventDTMF:
		return "dtmf"
	default:
		return "decode_error"
	}
}

// Event is one decoded inbound frame.
type Event struct {
	Type             EventType
	StreamSID        string
	CallSID          string
	CustomParameters map[string]string
	Payload          []byte
	Track            string
	MarkName         string
	Digit            string
	Err              error
}

// MediaEvent is the JSON envelope Twilio uses in both directions.
type MediaEvent struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Start          *startPayload `json:"start,omitempty"`
	Media          *mediaPayload `json:"media,omitempty"`
	Stop           *stopPayload  `json:"stop,omitempty"`
	Mark           *markPayload  `json:"mark,omitempty"`
	DTMF           *dtmfPayload  `json:"dtmf,omitempty"`
}

type startPayload struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      *mediaFormat      `json:"mediaFormat,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type mediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type stopPayload struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

type markPayload struct {
	Name string `json:"name"`
}

type dtmfPayload struct {
	Track string `json:"track,omitempty"`
	Digit string `json:"digit"`
}

// DecodeFrame turns one websocket text frame into an Event.
func DecodeFrame(data []byte) (Event, error) {
	var msg MediaEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch msg.Event {
	case "connected":
		return Event{Type: EventConnected}, nil

	case "start":
		if msg.Start == nil {
			return Event{}, fmt.Errorf("%w: start frame without start body", ErrMalformedFrame)
		}
		streamSid := msg.Start.StreamSid
		if streamSid == "" {
			streamSid = msg.StreamSid
		}
		if streamSid == "" {
			return Event{}, fmt.Errorf("%w: start frame without streamSid", ErrMalformedFrame)
		}
		return Event{
			Type:             EventStart,
			StreamSID:        streamSid,
			CallSID:          msg.Start.CallSid,
			CustomParameters: msg.Start.CustomParameters,
		}, nil

	case "media":
		if msg.Media == nil {
			return Event{}, fmt.Errorf("%w: media frame without media body", ErrMalformedFrame)
		}
		payload, err := audio.Base64ToBytes(msg.Media.Payload)
		if err != nil {
			return Event{}, fmt.Errorf("%w: media payload: %v", ErrMalformedFrame, err)
		}
		return Event{
			Type:      EventMedia,
			StreamSID: msg.StreamSid,
			Track:     msg.Media.Track,
			Payload:   payload,
		}, nil

	case "stop":
		ev := Event{Type: EventStop, StreamSID: msg.StreamSid}
		if msg.Stop != nil {
			ev.CallSID = msg.Stop.CallSid
		}
		return ev, nil

	case "mark":
		if msg.Mark == nil {
			return Event{}, fmt.Errorf("%w: mark frame without mark body", ErrMalformedFrame)
		}
		return Event{Type: EventMark, StreamSID: msg.StreamSid, MarkName: msg.Mark.Name}, nil

	case "dtmf":
		if msg.DTMF == nil {
			return Event{}, fmt.Errorf("%w: dtmf frame without dtmf body", ErrMalformedFrame)
		}
		return Event{Type: EventDTMF, StreamSID: msg.StreamSid, Digit: msg.DTMF.Digit}, nil

	case "":
		return Event{}, fmt.Errorf("%w: missing event field", ErrMalformedFrame)

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
}

// OutboundMessage is a frame the server sends back to Twilio.
type OutboundMessage struct {
	Event     string
	StreamSID string
	Payload   []byte
	MarkName  string
}

// MediaMessage addresses one chunk of caller-bound audio.
func MediaMessage(streamSID string, payload []byte) OutboundMessage {
	return OutboundMessage{Event: "media", StreamSID: streamSID, Payload: payload}
}

// MarkMessage asks Twilio to echo name back once preceding audio has played.
func MarkMessage(streamSID, name string) OutboundMessage {
	return OutboundMessage{Event: "mark", StreamSID: streamSID, MarkName: name}
}

// Encode renders the message in Twilio's JSON envelope.
func (m OutboundMessage) Encode() ([]byte, error) {
	if m.StreamSID == "" {
		return nil, ErrNoStream
	}
	env := MediaEvent{Event: m.Event, StreamSid: m.StreamSID}
	switch m.Event {
	case "media":
		env.Media = &mediaPayload{Payload: audio.BytesToBase64(m.Payload)}
	case "mark":
		env.Mark = &markPayload{Name: m.MarkName}
	default:
		return nil, fmt.Errorf("%w: cannot encode %q", ErrUnknownEvent, m.Event)
	}
	return json.Marshal(env)
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"voice-server/internal/observability"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEventKeysByCall(t *testing.T) {
	t.Parallel()
	w := &recordingWriter{}
	p := &Producer{writer: w, logger: observability.NewNopLogger()}

	err := p.PublishEvent(context.Background(), EventMessage{
		ID:        "evt-1",
		Type:      "call.status",
		CallSID:   "CA1",
		Data:      map[string]any{"call_status": "ringing"},
		Timestamp: "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("CA1"), msg.Key)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("call.status")})

	var decoded EventMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ringing", decoded.Data["call_status"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEventWriteFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("broker unavailable")
	p := &Producer{writer: &recordingWriter{err: boom}, logger: observability.NewNopLogger()}

	err := p.PublishEvent(context.Background(), EventMessage{ID: "x", Type: "call.status"})
	assert.ErrorIs(t, err, boom)
}

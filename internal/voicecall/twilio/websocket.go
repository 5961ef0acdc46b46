// Package twilio adapts a Twilio Media Streams websocket into typed call events
// and accepts outbound audio and marks for the caller.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-server/internal/observability"

	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed = errors.New("media stream connection closed")
	ErrNoStream   = errors.New("media stream not started")
)

const (
	defaultWriteTimeout = 2 * time.Second
	eventBufferSize     = 256
)

// Conn is one Twilio media stream. Reads happen on a single goroutine started by
// Start; Send may be called from any goroutine.
type Conn struct {
	conn         *websocket.Conn
	logger       *observability.Logger
	writeTimeout time.Duration
	writeMutex   sync.Mutex

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
}

func NewConn(conn *websocket.Conn, logger *observability.Logger) *Conn {
	return &Conn{
		conn:         conn,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		events:       make(chan Event, eventBufferSize),
		done:         make(chan struct{}),
	}
}

// WithWriteTimeout bounds how long a single outbound frame may block.
func (c *Conn) WithWriteTimeout(d time.Duration) *Conn {
	c.writeTimeout = d
	return c
}

// Start begins reading frames. The connection is closed when ctx is cancelled.
func (c *Conn) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.readLoop(ctx)
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-c.done:
			}
		}()
	})
}

// Events yields decoded frames in arrival order and is closed when the socket ends.
func (c *Conn) Events() <-chan Event {
	return c.events
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.events)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Info(ctx, "Twilio media stream closed by peer")
				} else {
					c.logger.InfoWithError(ctx, "Twilio media stream read ended", err)
				}
			}
			return
		}

		ev, err := DecodeFrame(msg)
		if err != nil {
			ev = Event{Type: EventDecodeError, Err: err}
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// Send writes one outbound frame. It fails fast once the connection is closed and
// gives up on a frame that cannot be written within the write timeout.
func (c *Conn) Send(msg OutboundMessage) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", msg.Event, err)
	}
	return nil
}

// Close sends a normal closure and releases the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMutex.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.writeMutex.Unlock()

		err = c.conn.Close()
	})
	return err
}

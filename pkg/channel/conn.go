package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Maximum frame size accepted from an agent
	maxMessageSize = 4096

	// Pending sends per connection
	sendQueueSize = 16
)

// ErrClosed is returned by Send once the connection is torn down
var ErrClosed = errors.New("channel closed")

// Timeouts bounds every read and write on a connection
type Timeouts struct {
	// Write is the longest a single frame write may take
	Write time.Duration

	// Pong is how long to wait for any frame (or pong) from the agent
	Pong time.Duration

	// Ping is the keepalive period; it must be shorter than Pong
	Ping time.Duration
}

// DefaultTimeouts returns 10s writes, 60s pong wait and pings at 9/10 of it
func DefaultTimeouts() Timeouts {
	pong := 60 * time.Second
	return Timeouts{
		Write: 10 * time.Second,
		Pong:  pong,
		Ping:  (pong * 9) / 10,
	}
}

type outbound struct {
	data     []byte
	deadline time.Time
	result   chan error
}

// WSConn is a push channel over one websocket. A write pump owns all data
// writes, a read pump owns all reads; Close may be called from anywhere.
type WSConn struct {
	clientID string
	conn     *websocket.Conn
	timeouts Timeouts
	handler  func(*WSConn, *wire.Message)
	logger   zerolog.Logger

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(clientID string, conn *websocket.Conn, timeouts Timeouts, handler func(*WSConn, *wire.Message)) *WSConn {
	return &WSConn{
		clientID: clientID,
		conn:     conn,
		timeouts: timeouts,
		handler:  handler,
		logger:   log.WithComponent("channel").With().Str("client_id", clientID).Logger(),
		send:     make(chan outbound, sendQueueSize),
		done:     make(chan struct{}),
	}
}

func (c *WSConn) start() {
	go c.writePump()
	go c.readPump()
}

// ClientID returns the id the channel was opened for
func (c *WSConn) ClientID() string {
	return c.clientID
}

// Done is closed once the connection is torn down
func (c *WSConn) Done() <-chan struct{} {
	return c.done
}

// Send queues msg for the write pump and waits for the write to finish.
// The write deadline is the earlier of ctx's deadline and the configured
// write timeout.
func (c *WSConn) Send(ctx context.Context, msg *wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.timeouts.Write)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	out := outbound{data: data, deadline: deadline, result: make(chan error, 1)}

	select {
	case c.send <- out:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", types.ErrTransientDelivery, ctx.Err())
	}

	select {
	case err := <-out.result:
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrTransientDelivery, err)
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", types.ErrTransientDelivery, ctx.Err())
	}
}

// Close sends a close frame when possible and releases the socket. It is
// safe to call more than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(c.timeouts.Ping)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case out := <-c.send:
			_ = c.conn.SetWriteDeadline(out.deadline)
			err := c.conn.WriteMessage(websocket.BinaryMessage, out.data)
			out.result <- err
			if err != nil {
				// A timed-out write leaves the socket unusable
				c.logger.Warn().Err(err).Msg("Write failed, closing channel")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Write))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed, closing channel")
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *WSConn) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Pong))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Pong))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("Channel read ended")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Pong))

		if kind != websocket.BinaryMessage {
			continue
		}
		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}
		if c.handler != nil {
			c.handler(c, msg)
		}
	}
}

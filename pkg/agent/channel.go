package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/downtime/pkg/retry"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/gorilla/websocket"
)

const (
	// Largest frame accepted from the controller
	maxFrameSize = 4096

	// How long the agent waits for any frame, ping included, before it
	// considers the channel dead
	readTimeout = 90 * time.Second

	writeTimeout = 10 * time.Second
)

// errUnknownClient means the controller refused the channel with 404
var errUnknownClient = errors.New("controller does not know this client")

// frameWriter sends one message back to the controller
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// lockedWriter serializes writes from the read loop and the ping handler
type lockedWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *lockedWriter) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(messageType, data)
}

func (w *lockedWriter) SetWriteDeadline(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.SetWriteDeadline(t)
}

func (w *lockedWriter) writeControl(messageType int, data []byte, deadline time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(messageType, data, deadline)
}

// channelLoop keeps a push channel open, reconnecting with backoff. It only
// returns early with ErrShutdown.
func (a *Agent) channelLoop(ctx context.Context) error {
	if a.cfg.ChannelURL == "" {
		<-ctx.Done()
		return nil
	}

	failures := 0
	for {
		registered := a.registered.Load()
		connected, err := a.session(ctx)
		if errors.Is(err, ErrShutdown) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			failures = 0
		}
		if errors.Is(err, retry.ErrPermanent) && registered {
			// Refused after a successful registration: the client was deleted
			a.logger.Warn().Err(err).Msg("Controller no longer knows this client")
			return ErrShutdown
		}

		delay := a.cfg.Reconnect.Delay(failures)
		failures++
		a.logger.Debug().Err(err).Dur("retry_in", delay).Msg("Channel down")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *Agent) channelURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(a.cfg.ChannelURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid channel url: %w", err)
	}
	return base.JoinPath(a.cfg.ClientID).String(), nil
}

// session runs one websocket connection until it fails. connected reports
// whether the handshake succeeded.
func (a *Agent) session(ctx context.Context) (connected bool, err error) {
	target, err := a.channelURL()
	if err != nil {
		return false, err
	}

	ws, resp, err := a.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, retry.Permanent(errUnknownClient)
		}
		return false, fmt.Errorf("failed to dial channel: %w", err)
	}
	defer ws.Close()
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	a.setConnected(true)
	defer a.setConnected(false)
	a.logger.Info().Str("url", target).Msg("Channel connected")

	w := &lockedWriter{conn: ws}
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		a.markContact()
		err := w.writeControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}
		a.markContact()

		if err := a.handleMessage(ctx, w, msg); err != nil {
			if errors.Is(err, ErrShutdown) {
				_ = w.writeControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
			}
			return true, err
		}
	}
}

// handleMessage acts on one frame from the controller. Only a shutdown or a
// failed report write ends the session.
func (a *Agent) handleMessage(ctx context.Context, w frameWriter, msg *wire.Message) error {
	switch msg.Action {
	case wire.ActionStateUpdate:
		a.apply(ctx, msg.State, "push")
		return a.report(w)

	case wire.ActionSchedule:
		a.updateSchedule(msg.Window, msg.Override)
		if msg.State != "" {
			a.apply(ctx, msg.State, "push")
		}
		return nil

	case wire.ActionShutdown:
		return ErrShutdown

	default:
		a.logger.Debug().Str("action", string(msg.Action)).Msg("Ignoring frame")
		return nil
	}
}

// report confirms the applied state over the channel
func (a *Agent) report(w frameWriter) error {
	state := a.actuator.Current()
	if state == "" {
		return nil
	}
	data, err := wire.Encode(wire.StateReport(state, a.now()))
	if err != nil {
		return err
	}
	if err := w.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.WriteMessage(websocket.BinaryMessage, data)
}

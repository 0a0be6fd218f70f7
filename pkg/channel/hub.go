package channel

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/downtime/pkg/events"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ScheduleSource looks up what governs a client, so a freshly connected
// agent can enforce on its own if the controller later goes away
type ScheduleSource interface {
	Schedule(clientID string) (types.Schedule, error)
}

// ReportFunc receives every state report an agent sends
type ReportFunc func(clientID string, state types.State, observedAt time.Time)

// Hub accepts agent websocket connections on /ws/{client_id} and attaches
// them to the registry
type Hub struct {
	registry  *registry.Registry
	events    events.Publisher
	timeouts  Timeouts
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
	schedules ScheduleSource
	onReport  ReportFunc

	wg sync.WaitGroup
}

// NewHub creates a hub serving clients known to reg
func NewHub(reg *registry.Registry, publisher events.Publisher, timeouts Timeouts) *Hub {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Hub{
		registry: reg,
		events:   publisher,
		timeouts: timeouts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Agents are not browsers; there is no origin to check
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.WithComponent("hub"),
	}
}

// SetScheduleSource enables the schedule frame sent after connect
func (h *Hub) SetScheduleSource(src ScheduleSource) {
	h.schedules = src
}

// SetReportFunc registers a hook called after each state report is recorded
func (h *Hub) SetReportFunc(fn ReportFunc) {
	h.onReport = fn
}

// ServeHTTP upgrades a connection for a known client. Unknown ids get 404
// and no upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		clientID = strings.TrimPrefix(r.URL.Path, "/ws/")
	}
	if clientID == "" || strings.Contains(clientID, "/") {
		http.NotFound(w, r)
		return
	}

	if _, err := h.registry.Get(clientID); err != nil {
		h.logger.Warn().Str("client_id", clientID).Msg("Rejecting channel for unknown client")
		http.Error(w, "unknown client", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Debug().Err(err).Str("client_id", clientID).Msg("Upgrade failed")
		return
	}

	conn := newWSConn(clientID, ws, h.timeouts, h.handleMessage)
	if err := h.registry.AttachChannel(clientID, conn); err != nil {
		// Deleted between lookup and attach
		conn.Close()
		return
	}
	conn.start()
	_, _ = h.registry.Touch(clientID, "")

	h.logger.Info().Str("client_id", clientID).Str("remote", r.RemoteAddr).Msg("Channel connected")
	h.events.Publish(&events.Event{
		Type:     events.EventChannelConnected,
		ClientID: clientID,
		Message:  "push channel connected",
		Metadata: map[string]string{"remote": r.RemoteAddr},
	})

	h.wg.Add(1)
	go h.watch(conn)

	h.sendInitial(conn)
}

// sendInitial pushes the current desired state, then the schedule
func (h *Hub) sendInitial(conn *WSConn) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeouts.Write)
	defer cancel()

	state, err := h.registry.GetDesiredState(conn.ClientID())
	if err != nil {
		return
	}
	if err := conn.Send(ctx, wire.StateUpdate(state)); err != nil {
		h.logger.Warn().Err(err).Str("client_id", conn.ClientID()).Msg("Initial state push failed")
		return
	}

	if h.schedules == nil {
		return
	}
	sched, err := h.schedules.Schedule(conn.ClientID())
	if err != nil {
		h.logger.Debug().Err(err).Str("client_id", conn.ClientID()).Msg("No schedule to send")
		return
	}
	msg := &wire.Message{
		Action:   wire.ActionSchedule,
		State:    state,
		Window:   sched.Window,
		Override: sched.Override,
	}
	if err := conn.Send(ctx, msg); err != nil {
		h.logger.Warn().Err(err).Str("client_id", conn.ClientID()).Msg("Schedule push failed")
	}
}

// watch releases the registry slot once the connection goes away
func (h *Hub) watch(conn *WSConn) {
	defer h.wg.Done()
	<-conn.Done()

	if h.registry.DetachChannel(conn.ClientID(), conn) {
		h.logger.Info().Str("client_id", conn.ClientID()).Msg("Channel disconnected")
		h.events.Publish(&events.Event{
			Type:     events.EventChannelDisconnected,
			ClientID: conn.ClientID(),
			Message:  "push channel disconnected",
		})
	}
}

func (h *Hub) handleMessage(conn *WSConn, msg *wire.Message) {
	switch msg.Action {
	case wire.ActionStateReport:
		at := msg.ObservedAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := h.registry.RecordActualState(conn.ClientID(), msg.State, at); err != nil {
			h.logger.Warn().Err(err).Str("client_id", conn.ClientID()).Msg("Failed to record state report")
			return
		}
		if h.onReport != nil {
			h.onReport(conn.ClientID(), msg.State, at)
		}
	default:
		h.logger.Debug().Str("client_id", conn.ClientID()).Str("action", string(msg.Action)).Msg("Ignoring frame")
	}
}

// Close tears down every attached websocket and waits for the hub's
// goroutines to finish
func (h *Hub) Close() {
	for _, id := range h.registry.IDs() {
		if conn, ok := h.registry.Channel(id).(*WSConn); ok {
			conn.Close()
		}
	}
	h.wg.Wait()
}

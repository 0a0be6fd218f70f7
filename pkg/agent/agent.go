package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/cuemby/downtime/pkg/actuator"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/retry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/window"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrShutdown is returned by Run when the controller deleted this client
var ErrShutdown = errors.New("controller requested shutdown")

// ControlClient is the part of the control API the agent calls
type ControlClient interface {
	RegisterClient(ctx context.Context, id, address, label string) (*proto.Client, error)
	Heartbeat(ctx context.Context, req *proto.HeartbeatRequest) (*proto.HeartbeatResponse, error)
}

// Config holds the agent's runtime settings
type Config struct {
	ClientID          string
	Address           string // reported address; empty lets the controller use the peer address
	Label             string
	ChannelURL        string // base websocket URL, the client id is appended
	HeartbeatInterval time.Duration
	OfflineAfter      time.Duration
	StateFile         string
	Location          *time.Location
	Reconnect         retry.Policy
}

// Agent keeps one host in the state the controller wants
type Agent struct {
	cfg      Config
	control  ControlClient
	actuator *actuator.Idempotent
	dialer   *websocket.Dialer

	registered atomic.Bool

	mu          sync.Mutex
	schedule    types.Schedule
	lastContact time.Time
	connected   bool

	now    func() time.Time
	logger zerolog.Logger
}

// New creates an agent. The last schedule saved in cfg.StateFile is loaded
// so offline enforcement works before the controller is first reached.
func New(cfg Config, control ControlClient, act actuator.Actuator) (*Agent, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.OfflineAfter <= 0 {
		cfg.OfflineAfter = 3 * cfg.HeartbeatInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Reconnect.BaseDelay <= 0 {
		cfg.Reconnect = retry.Policy{
			BaseDelay:  time.Second,
			Multiplier: 2,
			MaxDelay:   30 * time.Second,
		}
	}

	saved, err := loadState(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:      cfg,
		control:  control,
		actuator: actuator.NewIdempotent(act),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		schedule: types.Schedule{
			ClientID: cfg.ClientID,
			Window:   saved.Window,
			Override: saved.Override,
		},
		now:    time.Now,
		logger: log.WithClientID(cfg.ClientID),
	}
	a.lastContact = a.now()
	return a, nil
}

// Run registers, then heartbeats, keeps the push channel open and falls
// back to local evaluation while the controller is unreachable. It returns
// nil when ctx ends and ErrShutdown when the controller removed the client.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info().
		Str("channel", a.cfg.ChannelURL).
		Dur("heartbeat", a.cfg.HeartbeatInterval).
		Dur("offline_after", a.cfg.OfflineAfter).
		Msg("Agent starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.heartbeatLoop(ctx)
	})
	g.Go(func() error {
		return a.channelLoop(ctx)
	})
	g.Go(func() error {
		a.offlineLoop(ctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, ErrShutdown) {
		a.release(context.WithoutCancel(ctx))
		return err
	}
	a.logger.Info().Msg("Agent stopped")
	return nil
}

// release hands the host back once the controller has removed this client:
// the network is unblocked and the saved schedule forgotten
func (a *Agent) release(ctx context.Context) {
	a.logger.Warn().Msg("Controller removed this client, releasing host")
	a.apply(ctx, types.StateUnpaused, "shutdown")

	a.mu.Lock()
	a.schedule.Window = nil
	a.schedule.Override = nil
	a.mu.Unlock()
	if a.cfg.StateFile != "" {
		if err := os.Remove(a.cfg.StateFile); err != nil && !os.IsNotExist(err) {
			a.logger.Warn().Err(err).Msg("Failed to remove saved schedule")
		}
	}
}

// State returns the state currently applied on the host
func (a *Agent) State() types.State {
	return a.actuator.Current()
}

// Schedule returns the last schedule received from the controller
func (a *Agent) Schedule() types.Schedule {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schedule
}

// heartbeatLoop only returns early with ErrShutdown
func (a *Agent) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	if err := a.heartbeat(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ticker.C:
			if err := a.heartbeat(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *Agent) register(ctx context.Context) error {
	c, err := a.control.RegisterClient(ctx, a.cfg.ClientID, a.cfg.Address, a.cfg.Label)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	a.registered.Store(true)
	a.logger.Info().Str("address", c.Address).Msg("Registered with controller")
	return nil
}

// heartbeat reports the applied state and applies whatever the controller
// answers. Failures are logged and the next tick tries again. Once
// registered, a NotFound answer means the client was deleted and
// heartbeat returns ErrShutdown.
func (a *Agent) heartbeat(ctx context.Context) error {
	if !a.registered.Load() {
		if err := a.register(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Controller unreachable")
			return nil
		}
	}

	resp, err := a.control.Heartbeat(ctx, &proto.HeartbeatRequest{
		ClientID:    a.cfg.ClientID,
		Address:     a.cfg.Address,
		ActualState: string(a.actuator.Current()),
		ObservedAt:  a.now(),
	})
	if status.Code(err) == codes.NotFound {
		a.logger.Warn().Msg("Controller no longer knows this client")
		return ErrShutdown
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("Heartbeat failed")
		return nil
	}
	a.markContact()

	w, o, err := scheduleFromProto(resp.Window, resp.Override)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring malformed schedule in heartbeat")
	} else {
		a.updateSchedule(w, o)
	}

	state, err := types.ParseState(resp.DesiredState)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring malformed desired state")
		return nil
	}
	a.apply(ctx, state, "heartbeat")
	return nil
}

func (a *Agent) offlineLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.evaluateOffline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// evaluateOffline applies the last known schedule locally once the
// controller has been silent for longer than OfflineAfter. It reports
// whether it acted.
func (a *Agent) evaluateOffline(ctx context.Context) bool {
	now := a.now()

	a.mu.Lock()
	silent := now.Sub(a.lastContact)
	connected := a.connected
	sc := a.schedule
	a.mu.Unlock()

	if connected || silent < a.cfg.OfflineAfter {
		return false
	}

	state := window.Resolve(now, a.cfg.Location, sc)
	a.logger.Debug().Dur("silent", silent).Str("state", string(state)).Msg("Controller unreachable, evaluating schedule locally")
	a.apply(ctx, state, "offline")
	return true
}

func (a *Agent) apply(ctx context.Context, state types.State, source string) bool {
	changed, err := a.actuator.ApplyChanged(ctx, state)
	if err != nil {
		a.logger.Error().Err(err).Str("source", source).Str("state", string(state)).Msg("Failed to enforce state")
		return false
	}
	if changed {
		a.logger.Info().Str("source", source).Str("state", string(state)).Msg("Enforced state")
	}
	return true
}

func (a *Agent) markContact() {
	a.mu.Lock()
	a.lastContact = a.now()
	a.mu.Unlock()
}

func (a *Agent) setConnected(connected bool) {
	a.mu.Lock()
	a.connected = connected
	if connected {
		a.lastContact = a.now()
	}
	a.mu.Unlock()
}

func (a *Agent) updateSchedule(w *types.Window, o *types.Override) {
	a.mu.Lock()
	a.schedule.Window = w
	a.schedule.Override = o
	a.mu.Unlock()

	st := savedState{Window: w, Override: o, SavedAt: a.now()}
	if err := saveState(a.cfg.StateFile, st); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to save schedule")
	}
}

func scheduleFromProto(pw *proto.Window, po *proto.Override) (*types.Window, *types.Override, error) {
	var w *types.Window
	if pw != nil {
		parsed, err := window.ParseWindow(pw.DisableAt, pw.EnableAt)
		if err != nil {
			return nil, nil, err
		}
		w = &parsed
	}

	var o *types.Override
	if po != nil {
		state, err := types.ParseState(po.State)
		if err != nil {
			return nil, nil, err
		}
		o = &types.Override{State: state, Until: po.Until}
	}
	return w, o, nil
}

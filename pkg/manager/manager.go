package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cuemby/downtime/pkg/channel"
	"github.com/cuemby/downtime/pkg/events"
	"github.com/cuemby/downtime/pkg/heartbeat"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/cuemby/downtime/pkg/reconciler"
	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/retry"
	"github.com/cuemby/downtime/pkg/storage"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/window"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/rs/zerolog"
)

// maxClientIDLength bounds ids used as bolt keys and URL path segments
const maxClientIDLength = 128

// Manager owns the controller's state and wires its components together
type Manager struct {
	dataDir  string
	location *time.Location

	store       storage.Store
	registry    *registry.Registry
	eventBroker *events.Broker
	pusher      *channel.Pusher
	hub         *channel.Hub
	reconciler  *reconciler.Reconciler
	heartbeats  *heartbeat.Service
	collector   *metrics.Collector
	logger      zerolog.Logger
	now         func() time.Time
}

// Config holds configuration for creating a Manager
type Config struct {
	DataDir      string
	TickInterval time.Duration
	Location     *time.Location
	PushPolicy   retry.Policy
	WriteTimeout time.Duration
	Timeouts     channel.Timeouts
}

// NewManager opens the store and builds every component. Persisted clients
// are restored into the registry before it returns.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Create BoltDB store
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	m, err := newManager(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return m, nil
}

func newManager(cfg *Config, store storage.Store) (*Manager, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	timeouts := cfg.Timeouts
	if timeouts.Write <= 0 {
		timeouts = channel.DefaultTimeouts()
	}

	reg := registry.New()

	// Create event broker
	eventBroker := events.NewBroker()
	eventBroker.Start()

	pusher := channel.NewPusher(reg, cfg.PushPolicy, writeTimeout, eventBroker)
	hub := channel.NewHub(reg, eventBroker, timeouts)

	m := &Manager{
		dataDir:     cfg.DataDir,
		location:    loc,
		store:       store,
		registry:    reg,
		eventBroker: eventBroker,
		pusher:      pusher,
		hub:         hub,
		reconciler:  reconciler.NewReconciler(store, reg, pusher, eventBroker, cfg.TickInterval, loc),
		heartbeats:  heartbeat.NewService(reg, store),
		collector:   metrics.NewCollector(reg),
		logger:      log.WithComponent("manager"),
		now:         time.Now,
	}
	hub.SetScheduleSource(m)
	hub.SetReportFunc(m.recordReport)

	if err := m.Restore(); err != nil {
		eventBroker.Stop()
		return nil, err
	}
	metrics.RegisterComponent("store", true, "")
	return m, nil
}

// Restore loads every persisted client into the registry
func (m *Manager) Restore() error {
	clients, err := m.store.ListClients()
	if err != nil {
		return fmt.Errorf("failed to load clients: %w", err)
	}

	restored := make([]types.Client, 0, len(clients))
	for _, c := range clients {
		restored = append(restored, *c)
	}
	m.registry.Restore(restored)

	m.logger.Info().Int("clients", len(restored)).Msg("Restored clients")
	return nil
}

// Start runs the reconciler and the metrics collector
func (m *Manager) Start(ctx context.Context) {
	m.reconciler.Start(ctx)
	m.collector.Start()
}

// Shutdown stops background work, closes channels and the store
func (m *Manager) Shutdown() error {
	m.reconciler.Stop()
	m.collector.Stop()
	m.hub.Close()
	m.eventBroker.Stop()
	return m.store.Close()
}

// Hub returns the websocket handler agents connect to
func (m *Manager) Hub() http.Handler {
	return m.hub
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Ready reports whether the first reconciliation tick has completed
func (m *Manager) Ready() bool {
	return m.reconciler.Ready()
}

// CheckStore performs a cheap read to confirm the store is usable
func (m *Manager) CheckStore() error {
	_, err := m.store.ListActiveSchedules(context.Background())
	return err
}

// RegisterClient creates a client or refreshes an existing one. Agents call
// it at startup with the id they generated on first run.
func (m *Manager) RegisterClient(id, address, label string) (types.Client, error) {
	if err := validateClientID(id); err != nil {
		return types.Client{}, err
	}

	_, getErr := m.registry.Get(id)
	isNew := errors.Is(getErr, types.ErrNotFound)

	client := m.registry.UpsertClient(id, address)
	if label != "" {
		if err := m.registry.SetLabel(id, label); err != nil {
			return types.Client{}, err
		}
		client.Label = label
	}

	err := m.store.UpdateClient(id, func(stored *types.Client) error {
		stored.Address = client.Address
		stored.LastContact = client.LastContact
		if label != "" {
			stored.Label = label
		}
		stored.DesiredState = client.DesiredState
		stored.Connected = false
		return nil
	})
	if errors.Is(err, types.ErrNotFound) {
		client.Connected = false
		err = m.store.CreateClient(&client)
	}
	if err != nil {
		return types.Client{}, storeErr("save client", err)
	}

	if isNew {
		m.logger.Info().Str("client_id", id).Str("address", address).Msg("Client registered")
		m.eventBroker.Publish(&events.Event{
			Type:     events.EventClientRegistered,
			ClientID: id,
			Message:  "client registered",
			Metadata: map[string]string{"address": address, "label": label},
		})
		m.reconciler.Trigger()
	}
	return m.registry.Get(id)
}

// Heartbeat records contact from an agent and returns what it should enforce
func (m *Manager) Heartbeat(ctx context.Context, req heartbeat.Request) (*heartbeat.Response, error) {
	return m.heartbeats.OnHeartbeat(ctx, req)
}

// GetClient returns one client as the registry sees it
func (m *Manager) GetClient(id string) (types.Client, error) {
	return m.registry.Get(id)
}

// ListClients returns every client ordered by id
func (m *Manager) ListClients() []types.Client {
	return m.registry.List()
}

// RenameClient sets a client's label
func (m *Manager) RenameClient(id, label string) (types.Client, error) {
	if err := m.registry.SetLabel(id, label); err != nil {
		return types.Client{}, err
	}

	err := m.store.UpdateClient(id, func(stored *types.Client) error {
		stored.Label = label
		return nil
	})
	if err != nil {
		return types.Client{}, storeErr("save client", err)
	}

	m.eventBroker.Publish(&events.Event{
		Type:     events.EventClientRenamed,
		ClientID: id,
		Message:  fmt.Sprintf("renamed to %q", label),
	})
	return m.registry.Get(id)
}

// DeleteClient tells the agent to stop, then removes every trace of the
// client. A later heartbeat from the same id is rejected.
func (m *Manager) DeleteClient(ctx context.Context, id string) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}

	if err := m.pusher.Notify(ctx, id, &wire.Message{Action: wire.ActionShutdown}); err != nil {
		m.logger.Debug().Err(err).Str("client_id", id).Msg("Shutdown notice not delivered")
	}

	if err := m.store.DeleteClient(id); err != nil {
		return storeErr("delete client", err)
	}
	m.registry.Remove(id)

	m.logger.Info().Str("client_id", id).Msg("Client deleted")
	m.eventBroker.Publish(&events.Event{
		Type:     events.EventClientDeleted,
		ClientID: id,
		Message:  "client deleted",
	})
	return nil
}

// SetWindow validates and stores a client's downtime window, replacing any
// previous one
func (m *Manager) SetWindow(ctx context.Context, id, disableAt, enableAt string) (types.Window, error) {
	if _, err := m.registry.Get(id); err != nil {
		return types.Window{}, err
	}

	w, err := window.ParseWindow(disableAt, enableAt)
	if err != nil {
		return types.Window{}, err
	}
	if err := m.store.PutWindow(id, w); err != nil {
		return types.Window{}, storeErr("save window", err)
	}

	m.logger.Info().Str("client_id", id).Str("window", w.String()).Msg("Window set")
	m.eventBroker.Publish(&events.Event{
		Type:     events.EventWindowSet,
		ClientID: id,
		Message:  "window " + w.String(),
	})
	m.scheduleChanged(ctx, id)
	return w, nil
}

// ClearWindow removes a client's window; the client fails open
func (m *Manager) ClearWindow(ctx context.Context, id string) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}
	if err := m.store.DeleteWindow(id); err != nil {
		return storeErr("delete window", err)
	}

	m.eventBroker.Publish(&events.Event{
		Type:     events.EventWindowCleared,
		ClientID: id,
		Message:  "window cleared",
	})
	m.scheduleChanged(ctx, id)
	return nil
}

// SetOverride pins a client to state until the given time (zero: until
// cleared), regardless of its window
func (m *Manager) SetOverride(ctx context.Context, id string, state types.State, until time.Time) (types.Override, error) {
	if _, err := m.registry.Get(id); err != nil {
		return types.Override{}, err
	}
	if !state.Valid() {
		return types.Override{}, fmt.Errorf("%w: state %q", types.ErrInvalidArgument, state)
	}
	if !until.IsZero() && !until.After(m.now()) {
		return types.Override{}, fmt.Errorf("%w: override end %s is in the past", types.ErrInvalidArgument, until.Format(time.RFC3339))
	}

	o := types.Override{State: state, Until: until}
	if err := m.store.SetOverride(id, o); err != nil {
		return types.Override{}, storeErr("save override", err)
	}

	m.logger.Info().Str("client_id", id).Str("state", string(state)).Time("until", until).Msg("Override set")
	m.eventBroker.Publish(&events.Event{
		Type:     events.EventOverrideSet,
		ClientID: id,
		Message:  "override " + string(state),
	})
	m.scheduleChanged(ctx, id)
	return o, nil
}

// ClearOverride returns a client to its window
func (m *Manager) ClearOverride(ctx context.Context, id string) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}
	if err := m.store.ClearOverride(id); err != nil {
		return storeErr("clear override", err)
	}

	m.eventBroker.Publish(&events.Event{
		Type:     events.EventOverrideCleared,
		ClientID: id,
		Message:  "override cleared",
	})
	m.scheduleChanged(ctx, id)
	return nil
}

// Schedule returns the window and active override governing a client
func (m *Manager) Schedule(id string) (types.Schedule, error) {
	sc := types.Schedule{ClientID: id}

	w, err := m.store.GetWindow(id)
	switch {
	case err == nil:
		sc.Window = w
	case !errors.Is(err, types.ErrNotFound):
		return sc, storeErr("load window", err)
	}

	o, err := m.store.GetOverride(id)
	switch {
	case err == nil:
		if o.Active(m.now()) {
			sc.Override = o
		}
	case !errors.Is(err, types.ErrNotFound):
		return sc, storeErr("load override", err)
	}
	return sc, nil
}

// NextChange returns when sc next changes the client's desired state. An
// override that never expires has no next change; one with an expiry
// changes when it expires.
func (m *Manager) NextChange(sc types.Schedule) (time.Time, bool) {
	now := m.now()
	if sc.Override.Active(now) {
		if sc.Override.Until.IsZero() {
			return time.Time{}, false
		}
		return sc.Override.Until, true
	}
	if sc.Window == nil {
		return time.Time{}, false
	}
	return window.NextChange(now, m.location, *sc.Window)
}

// scheduleChanged forwards the new schedule to a connected agent and asks
// for an early tick so the desired state follows without waiting
func (m *Manager) scheduleChanged(ctx context.Context, id string) {
	m.reconciler.Trigger()

	if m.registry.Channel(id) == nil {
		return
	}
	sc, err := m.Schedule(id)
	if err != nil {
		m.logger.Warn().Err(err).Str("client_id", id).Msg("Failed to load schedule for agent")
		return
	}
	msg := &wire.Message{Action: wire.ActionSchedule, Window: sc.Window, Override: sc.Override}
	if err := m.pusher.Notify(ctx, id, msg); err != nil {
		m.logger.Debug().Err(err).Str("client_id", id).Msg("Schedule notice not delivered")
	}
}

// recordReport mirrors an agent's state report to the store
func (m *Manager) recordReport(id string, state types.State, observedAt time.Time) {
	err := m.store.UpdateClient(id, func(stored *types.Client) error {
		stored.ActualState = state
		stored.ActualObservedAt = observedAt
		return nil
	})
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		m.logger.Warn().Err(err).Str("client_id", id).Msg("Failed to persist state report")
	}
}

func validateClientID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: client id is required", types.ErrInvalidArgument)
	case len(id) > maxClientIDLength:
		return fmt.Errorf("%w: client id longer than %d characters", types.ErrInvalidArgument, maxClientIDLength)
	case strings.ContainsAny(id, "/ \t\n"):
		return fmt.Errorf("%w: client id %q contains invalid characters", types.ErrInvalidArgument, id)
	}
	return nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrStoreUnavailable) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w: %v", op, types.ErrStoreUnavailable, err)
}

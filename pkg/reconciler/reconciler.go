package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/downtime/pkg/events"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/window"
	"github.com/rs/zerolog"
)

// DefaultInterval is the time between reconciliation ticks
const DefaultInterval = 30 * time.Second

// Store is the part of the persistent store the reconciler uses
type Store interface {
	ListActiveSchedules(ctx context.Context) ([]types.Schedule, error)
	ClearOverride(clientID string) error
	UpdateClient(id string, fn func(*types.Client) error) error
}

// Reconciler drives every client's desired state toward what its schedule
// says for the current time of day
type Reconciler struct {
	store      Store
	registry   *registry.Registry
	dispatcher *Dispatcher
	events     events.Publisher
	interval   time.Duration
	location   *time.Location
	now        func() time.Time
	logger     zerolog.Logger

	mu        sync.Mutex
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	ready     atomic.Bool
}

// NewReconciler creates a new reconciler. loc is the zone windows are
// evaluated in; nil means time.Local.
func NewReconciler(store Store, reg *registry.Registry, pusher Pusher, publisher events.Publisher, interval time.Duration, loc *time.Location) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if loc == nil {
		loc = time.Local
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Reconciler{
		store:      store,
		registry:   reg,
		dispatcher: NewDispatcher(pusher, reg),
		events:     publisher,
		interval:   interval,
		location:   loc,
		now:        time.Now,
		logger:     log.WithComponent("reconciler"),
		triggerCh:  make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// SetClock replaces the time source, for tests
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Start begins the reconciliation loop. The first tick runs immediately.
func (r *Reconciler) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	// Three missed ticks means the loop is stuck
	metrics.ExpectUpdates("reconciler", 3*r.interval)
	go r.run(ctx)
}

// Stop stops the loop and waits for in-flight pushes to end
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.doneCh
	}
	r.dispatcher.Stop()
}

// Trigger requests a tick as soon as possible without waiting for the
// ticker; repeated calls before the tick runs collapse into one
func (r *Reconciler) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Ready reports whether at least one tick has completed
func (r *Reconciler) Ready() bool {
	return r.ready.Load()
}

// Dispatcher exposes the push dispatcher so other paths can request a push
func (r *Reconciler) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// run is the main reconciliation loop
func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Str("timezone", r.location.String()).Msg("Reconciler started")
	r.tick(ctx)

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.triggerCh:
			r.tick(ctx)
		case <-r.stopCh:
			r.logger.Info().Msg("Reconciler stopped")
			return
		case <-ctx.Done():
			r.logger.Info().Msg("Reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if err := r.ReconcileOnce(ctx, r.now()); err != nil {
		// Log error but continue
		r.logger.Warn().Err(err).Msg("Reconciliation tick skipped")
	}
}

// ReconcileOnce performs one reconciliation cycle as of now. A failed
// schedule read skips the whole tick, leaving every desired state as it
// was; per-client failures are logged and never affect other clients.
func (r *Reconciler) ReconcileOnce(ctx context.Context, now time.Time) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	schedules, err := r.store.ListActiveSchedules(ctx)
	if err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("store_unavailable").Inc()
		metrics.UpdateComponent("store", false, err.Error())
		if !errors.Is(err, types.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("failed to list schedules: %w", err)
	}
	metrics.UpdateComponent("store", true, "")

	seen := make(map[string]bool, len(schedules))
	for _, sc := range schedules {
		seen[sc.ClientID] = true
		r.reconcileClient(now, sc)
	}

	// Clients without a schedule fail open
	for _, id := range r.registry.IDs() {
		if !seen[id] {
			r.reconcileClient(now, types.Schedule{ClientID: id})
		}
	}

	r.ready.Store(true)
	metrics.UpdateComponent("reconciler", true, "")
	return nil
}

// reconcileClient evaluates one client. A panic here is contained to the
// client that caused it.
func (r *Reconciler) reconcileClient(now time.Time, sc types.Schedule) {
	logger := r.logger.With().Str("client_id", sc.ClientID).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ReconciliationErrorsTotal.WithLabelValues("panic").Inc()
			logger.Error().Interface("panic", rec).Msg("Client reconciliation panicked")
		}
	}()

	if sc.Override != nil && !sc.Override.Active(now) {
		r.expireOverride(sc.ClientID, logger)
		sc.Override = nil
	}

	target := window.Resolve(now, r.location, sc)

	changed, err := r.registry.SetDesiredState(sc.ClientID, target)
	if errors.Is(err, types.ErrNotFound) {
		// Schedule for a client that never registered
		logger.Debug().Msg("Skipping schedule for unknown client")
		return
	}
	if err != nil {
		metrics.ReconciliationErrorsTotal.WithLabelValues("registry").Inc()
		logger.Warn().Err(err).Msg("Failed to set desired state")
		return
	}
	if !changed {
		return
	}

	logger.Info().Str("state", string(target)).Msg("Desired state changed")
	metrics.StateTransitionsTotal.WithLabelValues(string(target)).Inc()

	eventType := events.EventClientUnpaused
	if target == types.StatePaused {
		eventType = events.EventClientPaused
	}
	r.events.Publish(&events.Event{
		Type:     eventType,
		ClientID: sc.ClientID,
		Message:  fmt.Sprintf("desired state is now %s", target),
	})

	r.mirror(sc.ClientID, target, logger)
	r.dispatcher.Enqueue(sc.ClientID)
}

// mirror persists a desired state change so it survives restarts; failure
// only costs durability
func (r *Reconciler) mirror(clientID string, state types.State, logger zerolog.Logger) {
	err := r.store.UpdateClient(clientID, func(c *types.Client) error {
		c.DesiredState = state
		return nil
	})
	switch {
	case errors.Is(err, types.ErrNotFound):
		logger.Debug().Msg("Client record gone, desired state not persisted")
	case err != nil:
		metrics.ReconciliationErrorsTotal.WithLabelValues("store_write").Inc()
		logger.Warn().Err(err).Msg("Failed to persist desired state")
	}
}

func (r *Reconciler) expireOverride(clientID string, logger zerolog.Logger) {
	if err := r.store.ClearOverride(clientID); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear expired override")
		return
	}
	logger.Info().Msg("Override expired")
	r.events.Publish(&events.Event{
		Type:     events.EventOverrideCleared,
		ClientID: clientID,
		Message:  "override expired",
	})
}

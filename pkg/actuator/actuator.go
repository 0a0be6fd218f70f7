// Package actuator applies a client's network state on the remote host.
//
// Deliveries reach the agent more than once and out of order (push and
// heartbeat race each other), so every Actuator must treat re-applying the
// current state as a no-op. Idempotent enforces that for any Actuator.
package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/rs/zerolog"
)

// Actuator switches the host between paused and unpaused
type Actuator interface {
	Apply(ctx context.Context, state types.State) error
}

// Func adapts a function to Actuator
type Func func(ctx context.Context, state types.State) error

// Apply calls f
func (f Func) Apply(ctx context.Context, state types.State) error {
	return f(ctx, state)
}

// Idempotent wraps an Actuator and skips applying the state already in
// effect. A failed Apply leaves the previous state recorded, so the next
// delivery of the same state retries.
type Idempotent struct {
	next   Actuator
	mu     sync.Mutex
	state  types.State
	logger zerolog.Logger
}

// NewIdempotent wraps next. The host's starting state is unknown, so the
// first Apply always runs.
func NewIdempotent(next Actuator) *Idempotent {
	return &Idempotent{
		next:   next,
		logger: log.WithComponent("actuator"),
	}
}

// Apply applies state unless it is already in effect
func (a *Idempotent) Apply(ctx context.Context, state types.State) error {
	_, err := a.ApplyChanged(ctx, state)
	return err
}

// ApplyChanged is Apply that also reports whether the host was touched
func (a *Idempotent) ApplyChanged(ctx context.Context, state types.State) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("%w: state %q", types.ErrInvalidArgument, state)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == state {
		return false, nil
	}
	if err := a.next.Apply(ctx, state); err != nil {
		a.logger.Error().Err(err).Str("state", string(state)).Msg("Failed to apply state")
		return false, err
	}

	a.logger.Info().Str("from", string(a.state)).Str("to", string(state)).Msg("State applied")
	a.state = state
	return true, nil
}

// Current returns the state last applied successfully, or "" before the
// first Apply
func (a *Idempotent) Current() types.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Noop only logs. It is used when no block/unblock mechanism is configured.
type Noop struct{}

// Apply logs state
func (Noop) Apply(_ context.Context, state types.State) error {
	logger := log.WithComponent("actuator")
	logger.Warn().Str("state", string(state)).Msg("No actuator configured, state not enforced")
	return nil
}

package reconciler

import (
	"context"
	"sync"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/rs/zerolog"
)

// Pusher delivers a desired state to one client
type Pusher interface {
	Push(ctx context.Context, clientID string, state types.State) types.DeliveryResult
}

// StateSource reports the current desired state of a client
type StateSource interface {
	GetDesiredState(clientID string) (types.State, error)
}

// Dispatcher runs pushes off the reconciliation goroutine. Each client has
// at most one push in flight; a request arriving meanwhile schedules one
// follow-up, and every push sends the state current when it starts.
type Dispatcher struct {
	pusher Pusher
	states StateSource
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]bool
	pending  map[string]bool
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher
func NewDispatcher(pusher Pusher, states StateSource) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		pusher:   pusher,
		states:   states,
		logger:   log.WithComponent("dispatcher"),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]bool),
		pending:  make(map[string]bool),
	}
}

// Enqueue requests a push of the client's current desired state
func (d *Dispatcher) Enqueue(clientID string) {
	d.mu.Lock()
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		return
	}
	if d.inflight[clientID] {
		d.pending[clientID] = true
		d.mu.Unlock()
		return
	}
	d.inflight[clientID] = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(clientID)
}

func (d *Dispatcher) run(clientID string) {
	defer d.wg.Done()

	for {
		d.pushOnce(clientID)

		d.mu.Lock()
		if d.pending[clientID] && d.ctx.Err() == nil {
			delete(d.pending, clientID)
			d.mu.Unlock()
			continue
		}
		delete(d.pending, clientID)
		delete(d.inflight, clientID)
		d.mu.Unlock()
		return
	}
}

func (d *Dispatcher) pushOnce(clientID string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("client_id", clientID).Interface("panic", r).Msg("Push panicked")
		}
	}()

	state, err := d.states.GetDesiredState(clientID)
	if err != nil {
		d.logger.Debug().Err(err).Str("client_id", clientID).Msg("Skipping push")
		return
	}

	result := d.pusher.Push(d.ctx, clientID, state)
	d.logger.Debug().
		Str("client_id", clientID).
		Str("state", string(state)).
		Str("result", string(result)).
		Msg("Push finished")
}

// InFlight returns the number of clients with a push running
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Wait blocks until every running push has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stop cancels running pushes and waits for them
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

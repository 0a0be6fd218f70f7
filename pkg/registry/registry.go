package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/wire"
)

// Conn is a live push channel to one client
type Conn interface {
	// ClientID returns the id the channel was opened for
	ClientID() string

	// Send writes msg or fails once ctx expires
	Send(ctx context.Context, msg *wire.Message) error

	// Close tears the channel down; it is safe to call more than once
	Close() error

	// Done is closed once the channel is torn down
	Done() <-chan struct{}
}

// entry is the registry's private record; it never leaves the lock
type entry struct {
	client types.Client
	conn   Conn
}

// Registry is the in-memory authority for client state. Every operation
// is serialized by a single mutex and returns copies.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*entry
	now     func() time.Time
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		clients: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for contact timestamps
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// UpsertClient creates the client on first sight, or refreshes its address
// and last contact. The desired state of an existing client is untouched;
// a new client starts unpaused.
func (r *Registry) UpsertClient(id, address string) types.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.clients[id]
	if !ok {
		e = &entry{client: types.Client{
			ID:           id,
			DesiredState: types.StateUnpaused,
			CreatedAt:    now,
		}}
		r.clients[id] = e
	}
	if address != "" {
		e.client.Address = address
	}
	e.client.LastContact = now
	return e.snapshot()
}

// Touch refreshes address and last contact of a known client. Unknown ids
// get ErrNotFound; a heartbeat never creates a client.
func (r *Registry) Touch(id, address string) (types.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return types.Client{}, notFound(id)
	}
	if address != "" {
		e.client.Address = address
	}
	e.client.LastContact = r.now()
	return e.snapshot(), nil
}

// Get returns a copy of the client
func (r *Registry) Get(id string) (types.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return types.Client{}, notFound(id)
	}
	return e.snapshot(), nil
}

// List returns copies of all clients ordered by id
func (r *Registry) List() []types.Client {
	r.mu.Lock()
	out := make([]types.Client, 0, len(r.clients))
	for _, e := range r.clients {
		out = append(out, e.snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the ids of all known clients
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// GetDesiredState returns the state the client should be in
func (r *Registry) GetDesiredState(id string) (types.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return "", notFound(id)
	}
	return e.client.DesiredState, nil
}

// SetDesiredState stores state and reports whether it differed from the
// previous desired state
func (r *Registry) SetDesiredState(id string, state types.State) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("invalid state %q", state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return false, notFound(id)
	}
	if e.client.DesiredState == state {
		return false, nil
	}
	e.client.DesiredState = state
	return true, nil
}

// RecordActualState stores what the agent last reported. It is never used
// to decide the desired state.
func (r *Registry) RecordActualState(id string, state types.State, observedAt time.Time) error {
	if !state.Valid() {
		return fmt.Errorf("invalid state %q", state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return notFound(id)
	}
	// Older reports arriving late must not roll back a newer observation
	if !observedAt.IsZero() && observedAt.Before(e.client.ActualObservedAt) {
		return nil
	}
	e.client.ActualState = state
	e.client.ActualObservedAt = observedAt
	return nil
}

// SetLabel sets the human-friendly name of a client
func (r *Registry) SetLabel(id, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok {
		return notFound(id)
	}
	e.client.Label = label
	return nil
}

// AttachChannel makes conn the client's push channel. A previously attached
// channel is superseded and closed after the lock is released.
func (r *Registry) AttachChannel(id string, conn Conn) error {
	r.mu.Lock()
	e, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return notFound(id)
	}
	old := e.conn
	e.conn = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}
	return nil
}

// DetachChannel removes conn if it is still the attached channel. It
// reports whether anything was removed; a superseded channel never evicts
// its successor. The channel itself is not closed.
func (r *Registry) DetachChannel(id string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[id]
	if !ok || e.conn == nil || e.conn != conn {
		return false
	}
	e.conn = nil
	return true
}

// Channel returns the attached push channel or nil
func (r *Registry) Channel(id string) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.clients[id]; ok {
		return e.conn
	}
	return nil
}

// Remove purges a client and closes its channel. It returns false for
// unknown ids.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()

	if ok && e.conn != nil {
		e.conn.Close()
	}
	return ok
}

// Restore loads persisted clients, typically once at startup. Existing
// entries keep their channel; everything else is taken from the record.
func (r *Registry) Restore(clients []types.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range clients {
		if c.ID == "" {
			continue
		}
		if !c.DesiredState.Valid() {
			c.DesiredState = types.StateUnpaused
		}
		c.Connected = false

		e, ok := r.clients[c.ID]
		if !ok {
			r.clients[c.ID] = &entry{client: c}
			continue
		}
		e.client = c
	}
}

// Count returns the number of known clients
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// ConnectedCount returns the number of clients with a push channel
func (r *Registry) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.clients {
		if e.conn != nil {
			n++
		}
	}
	return n
}

// CountByState returns how many clients desire each state
func (r *Registry) CountByState() map[types.State]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[types.State]int{
		types.StatePaused:   0,
		types.StateUnpaused: 0,
	}
	for _, e := range r.clients {
		counts[e.client.DesiredState]++
	}
	return counts
}

func (e *entry) snapshot() types.Client {
	c := e.client
	c.Connected = e.conn != nil
	return c
}

func notFound(id string) error {
	return fmt.Errorf("client %s: %w", id, types.ErrNotFound)
}

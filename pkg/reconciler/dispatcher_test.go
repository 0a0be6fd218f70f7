package reconciler

import (
	"testing"
	"time"

	"github.com/cuemby/downtime/pkg/registry"
	"github.com/cuemby/downtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherCoalesces(t *testing.T) {
	reg := registry.New()
	reg.UpsertClient("c1", "")
	pusher := &recordingPusher{gate: make(chan struct{})}
	d := NewDispatcher(pusher, reg)

	_, err := reg.SetDesiredState("c1", types.StatePaused)
	require.NoError(t, err)
	d.Enqueue("c1")
	assert.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)

	// Flaps while the first push is blocked
	for _, s := range []types.State{types.StateUnpaused, types.StatePaused, types.StateUnpaused} {
		_, err := reg.SetDesiredState("c1", s)
		require.NoError(t, err)
		d.Enqueue("c1")
	}

	close(pusher.gate)
	d.Wait()

	pushes := pusher.recorded()
	require.Len(t, pushes, 2, "one in flight plus one coalesced follow-up")
	assert.Equal(t, types.StateUnpaused, pushes[1].state, "follow-up carries the latest state")
	assert.Equal(t, 0, d.InFlight())
}

func TestDispatcherIndependentClients(t *testing.T) {
	reg := registry.New()
	reg.UpsertClient("a", "")
	reg.UpsertClient("b", "")
	pusher := &recordingPusher{}
	d := NewDispatcher(pusher, reg)

	d.Enqueue("a")
	d.Enqueue("b")
	d.Wait()

	assert.ElementsMatch(t, []push{{"a", types.StateUnpaused}, {"b", types.StateUnpaused}}, pusher.recorded())
}

func TestDispatcherSkipsUnknownClient(t *testing.T) {
	pusher := &recordingPusher{}
	d := NewDispatcher(pusher, registry.New())

	d.Enqueue("ghost")
	d.Wait()

	assert.Empty(t, pusher.recorded())
}

func TestDispatcherStop(t *testing.T) {
	reg := registry.New()
	reg.UpsertClient("c1", "")
	pusher := &recordingPusher{}
	d := NewDispatcher(pusher, reg)

	d.Stop()
	d.Enqueue("c1")
	d.Wait()

	assert.Empty(t, pusher.recorded(), "no pushes after stop")
}

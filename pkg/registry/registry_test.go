package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id        string
	closeOnce sync.Once
	done      chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, done: make(chan struct{})}
}

func (c *fakeConn) ClientID() string                          { return c.id }
func (c *fakeConn) Send(context.Context, *wire.Message) error { return nil }
func (c *fakeConn) Done() <-chan struct{}                     { return c.done }
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUpsertClient(t *testing.T) {
	r := New()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	r.SetClock(fixedClock(t0))

	c := r.UpsertClient("c1", "10.0.0.5")
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "10.0.0.5", c.Address)
	assert.Equal(t, types.StateUnpaused, c.DesiredState)
	assert.Equal(t, t0, c.CreatedAt)

	_, err := r.SetDesiredState("c1", types.StatePaused)
	require.NoError(t, err)

	t1 := t0.Add(time.Minute)
	r.SetClock(fixedClock(t1))
	c = r.UpsertClient("c1", "10.0.0.6")
	assert.Equal(t, "10.0.0.6", c.Address)
	assert.Equal(t, types.StatePaused, c.DesiredState, "upsert never touches desired state")
	assert.Equal(t, t0, c.CreatedAt)
	assert.Equal(t, t1, c.LastContact)
	assert.Equal(t, 1, r.Count())
}

func TestTouchUnknownClient(t *testing.T) {
	r := New()

	_, err := r.Touch("ghost", "10.0.0.9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Equal(t, 0, r.Count(), "heartbeats never create clients")

	r.UpsertClient("c1", "")
	c, err := r.Touch("c1", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", c.Address)
}

func TestSetDesiredState(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")

	changed, err := r.SetDesiredState("c1", types.StatePaused)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.SetDesiredState("c1", types.StatePaused)
	require.NoError(t, err)
	assert.False(t, changed)

	state, err := r.GetDesiredState("c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, state)

	_, err = r.SetDesiredState("c1", "sleeping")
	assert.Error(t, err)

	_, err = r.SetDesiredState("ghost", types.StatePaused)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = r.GetDesiredState("ghost")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestRecordActualState(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")
	t0 := time.Date(2026, 5, 4, 22, 0, 5, 0, time.UTC)

	require.NoError(t, r.RecordActualState("c1", types.StatePaused, t0))
	require.NoError(t, r.RecordActualState("c1", types.StateUnpaused, t0.Add(-time.Minute)))

	c, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, c.ActualState, "stale report ignored")
	assert.Equal(t, t0, c.ActualObservedAt)
	assert.Equal(t, types.StateUnpaused, c.DesiredState, "actual state never feeds desired state")

	assert.True(t, errors.Is(r.RecordActualState("ghost", types.StatePaused, t0), types.ErrNotFound))
}

func TestAttachChannelSupersedes(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")

	first := newFakeConn("c1")
	second := newFakeConn("c1")

	require.NoError(t, r.AttachChannel("c1", first))
	require.NoError(t, r.AttachChannel("c1", second))

	assert.True(t, first.closed(), "old channel closed on supersede")
	assert.False(t, second.closed())
	assert.Same(t, second, r.Channel("c1"))

	// The superseded handle cannot evict its successor
	assert.False(t, r.DetachChannel("c1", first))
	assert.Same(t, second, r.Channel("c1"))

	assert.True(t, r.DetachChannel("c1", second))
	assert.Nil(t, r.Channel("c1"))
	assert.False(t, second.closed(), "detach does not close")
}

func TestAttachChannelUnknownClient(t *testing.T) {
	r := New()
	conn := newFakeConn("ghost")

	err := r.AttachChannel("ghost", conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Nil(t, r.Channel("ghost"))
}

func TestConnectedFlag(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")
	r.UpsertClient("c2", "")

	require.NoError(t, r.AttachChannel("c1", newFakeConn("c1")))

	c1, _ := r.Get("c1")
	c2, _ := r.Get("c2")
	assert.True(t, c1.Connected)
	assert.False(t, c2.Connected)
	assert.Equal(t, 1, r.ConnectedCount())
}

func TestRemove(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")
	conn := newFakeConn("c1")
	require.NoError(t, r.AttachChannel("c1", conn))

	assert.True(t, r.Remove("c1"))
	assert.True(t, conn.closed())
	assert.False(t, r.Remove("c1"))

	_, err := r.Get("c1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestListAndLabels(t *testing.T) {
	r := New()
	r.UpsertClient("b", "")
	r.UpsertClient("a", "")
	require.NoError(t, r.SetLabel("a", "kitchen-pc"))
	assert.True(t, errors.Is(r.SetLabel("zz", "x"), types.ErrNotFound))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "kitchen-pc", list[0].Label)
	assert.ElementsMatch(t, []string{"a", "b"}, r.IDs())
}

func TestRestore(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")
	conn := newFakeConn("c1")
	require.NoError(t, r.AttachChannel("c1", conn))

	r.Restore([]types.Client{
		{ID: "c1", Label: "desk", DesiredState: types.StatePaused},
		{ID: "c2", Connected: true},
		{ID: ""},
	})

	c1, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "desk", c1.Label)
	assert.Equal(t, types.StatePaused, c1.DesiredState)
	assert.True(t, c1.Connected, "restore keeps live channels")

	c2, err := r.Get("c2")
	require.NoError(t, err)
	assert.Equal(t, types.StateUnpaused, c2.DesiredState)
	assert.False(t, c2.Connected)
	assert.Equal(t, 2, r.Count())

	counts := r.CountByState()
	assert.Equal(t, 1, counts[types.StatePaused])
	assert.Equal(t, 1, counts[types.StateUnpaused])
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	r.UpsertClient("c1", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			state := types.StatePaused
			if i%2 == 0 {
				state = types.StateUnpaused
			}
			_, _ = r.SetDesiredState("c1", state)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.Touch("c1", "10.0.0.1")
		}()
		go func() {
			defer wg.Done()
			conn := newFakeConn("c1")
			_ = r.AttachChannel("c1", conn)
			r.DetachChannel("c1", conn)
		}()
	}
	wg.Wait()

	state, err := r.GetDesiredState("c1")
	require.NoError(t, err)
	assert.True(t, state.Valid())
}

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestClientCRUD(t *testing.T) {
	store := newTestStore(t)
	created := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	client := &types.Client{
		ID:           "c1",
		Address:      "192.168.86.10",
		Label:        "study",
		DesiredState: types.StateUnpaused,
		CreatedAt:    created,
	}
	require.NoError(t, store.CreateClient(client))

	got, err := store.GetClient("c1")
	require.NoError(t, err)
	assert.Equal(t, "study", got.Label)
	assert.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, store.UpdateClient("c1", func(c *types.Client) error {
		c.DesiredState = types.StatePaused
		return nil
	}))

	got, err = store.GetClient("c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, got.DesiredState)

	require.NoError(t, store.CreateClient(&types.Client{ID: "c2"}))
	clients, err := store.ListClients()
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	_, err = store.GetClient("missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestWindowLastWriteWins(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutWindow("c1", types.Window{DisableAt: 22 * 3600, EnableAt: 6 * 3600}))
	require.NoError(t, store.PutWindow("c1", types.Window{DisableAt: 20 * 3600, EnableAt: 7 * 3600}))

	w, err := store.GetWindow("c1")
	require.NoError(t, err)
	assert.Equal(t, "20:00-07:00", w.String())

	require.NoError(t, store.DeleteWindow("c1"))
	_, err = store.GetWindow("c1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestOverride(t *testing.T) {
	store := newTestStore(t)
	until := time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetOverride("c1", types.Override{State: types.StatePaused, Until: until}))

	o, err := store.GetOverride("c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, o.State)
	assert.True(t, until.Equal(o.Until))

	require.NoError(t, store.ClearOverride("c1"))
	_, err = store.GetOverride("c1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestListActiveSchedules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateClient(&types.Client{ID: "idle"}))
	require.NoError(t, store.PutWindow("a", types.Window{DisableAt: 22 * 3600, EnableAt: 6 * 3600}))
	require.NoError(t, store.PutWindow("b", types.Window{DisableAt: 1 * 3600, EnableAt: 2 * 3600}))
	require.NoError(t, store.SetOverride("b", types.Override{State: types.StateUnpaused}))
	require.NoError(t, store.SetOverride("c", types.Override{State: types.StatePaused}))

	schedules, err := store.ListActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 3, "clients with neither window nor override are not listed")

	assert.Equal(t, "a", schedules[0].ClientID)
	assert.NotNil(t, schedules[0].Window)
	assert.Nil(t, schedules[0].Override)

	assert.Equal(t, "b", schedules[1].ClientID)
	assert.NotNil(t, schedules[1].Window)
	require.NotNil(t, schedules[1].Override)
	assert.Equal(t, types.StateUnpaused, schedules[1].Override.State)

	assert.Equal(t, "c", schedules[2].ClientID)
	assert.Nil(t, schedules[2].Window)
	assert.NotNil(t, schedules[2].Override)
}

func TestListActiveSchedulesUnavailable(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.ListActiveSchedules(ctx)
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))

	require.NoError(t, store.Close())
	_, err = store.ListActiveSchedules(context.Background())
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}

func TestDeleteClientRemovesSchedule(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateClient(&types.Client{ID: "c1"}))
	require.NoError(t, store.PutWindow("c1", types.Window{DisableAt: 3600, EnableAt: 7200}))
	require.NoError(t, store.SetOverride("c1", types.Override{State: types.StatePaused}))

	require.NoError(t, store.DeleteClient("c1"))

	schedules, err := store.ListActiveSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schedules)

	_, err = store.GetClient("c1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutWindow("c1", types.Window{DisableAt: 3600, EnableAt: 7200}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	w, err := store.GetWindow("c1")
	require.NoError(t, err)
	assert.Equal(t, types.TimeOfDay(3600), w.DisableAt)
}

func TestUpdateClientAfterDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateClient(&types.Client{ID: "c1", Label: "study"}))
	require.NoError(t, store.DeleteClient("c1"))

	called := false
	err := store.UpdateClient("c1", func(c *types.Client) error {
		called = true
		c.Address = "10.0.0.5"
		return nil
	})
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.False(t, called)

	_, err = store.GetClient("c1")
	assert.True(t, errors.Is(err, types.ErrNotFound), "deleted client must stay deleted")
}

func TestUpdateClientAbortsOnError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateClient(&types.Client{ID: "c1", Label: "study"}))

	err := store.UpdateClient("c1", func(c *types.Client) error {
		c.Label = "lounge"
		return errors.New("rejected")
	})
	assert.EqualError(t, err, "rejected")

	got, err := store.GetClient("c1")
	require.NoError(t, err)
	assert.Equal(t, "study", got.Label)
}

func TestUpdateClientConcurrentFields(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateClient(&types.Client{ID: "c1"}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, store.UpdateClient("c1", func(c *types.Client) error {
				c.Label = "lounge"
				return nil
			}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, store.UpdateClient("c1", func(c *types.Client) error {
				c.DesiredState = types.StatePaused
				return nil
			}))
		}
	}()
	wg.Wait()

	got, err := store.GetClient("c1")
	require.NoError(t, err)
	assert.Equal(t, "lounge", got.Label)
	assert.Equal(t, types.StatePaused, got.DesiredState)
}

package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/cuemby/downtime/pkg/api"
	"github.com/cuemby/downtime/pkg/manager"
	"github.com/cuemby/downtime/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	mgr, err := manager.NewManager(&manager.Config{
		DataDir:      t.TempDir(),
		TickInterval: time.Hour,
		Location:     time.UTC,
		PushPolicy:   retry.Policy{Attempts: 1, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Shutdown() })

	srv := api.NewServer(mgr)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientScheduleRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	registered, err := c.RegisterClient(ctx, "c1", "10.0.0.1", "Desk")
	require.NoError(t, err)
	assert.Equal(t, "Desk", registered.Label)

	w, err := c.SetWindow(ctx, "c1", "21:30", "07:00")
	require.NoError(t, err)
	assert.Equal(t, "21:30", w.DisableAt)

	o, err := c.SetOverride(ctx, "c1", "unpaused", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "unpaused", o.State)

	got, err := c.GetClient(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.Window)
	require.NotNil(t, got.Override)
	assert.Equal(t, "07:00", got.Window.EnableAt)

	require.NoError(t, c.ClearOverride(ctx, "c1"))
	require.NoError(t, c.ClearWindow(ctx, "c1"))

	renamed, err := c.RenameClient(ctx, "c1", "Study")
	require.NoError(t, err)
	assert.Equal(t, "Study", renamed.Label)

	clients, err := c.ListClients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	require.NoError(t, c.DeleteClient(ctx, "c1"))
	clients, err = c.ListClients(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestClientHeartbeatUnknown(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Heartbeat(context.Background(), &proto.HeartbeatRequest{ClientID: "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.GetClient(context.Background(), "ghost")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

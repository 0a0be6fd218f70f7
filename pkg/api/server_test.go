package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// startServer serves s over an in-memory listener and returns a connected client
func startServer(t *testing.T, s *Server) (proto.DowntimeClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return proto.NewDowntimeClient(conn), conn
}

func TestServerClientLifecycle(t *testing.T) {
	client, _ := startServer(t, NewServer(newTestManager(t)))
	ctx := context.Background()

	reg, err := client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1", Address: "10.0.0.1", Label: "Desk"})
	require.NoError(t, err)
	assert.Equal(t, "c1", reg.Client.ID)
	assert.Equal(t, "unpaused", reg.Client.DesiredState)

	w, err := client.SetWindow(ctx, &proto.SetWindowRequest{ClientID: "c1", DisableAt: "22:00", EnableAt: "06:00"})
	require.NoError(t, err)
	assert.Equal(t, &proto.Window{DisableAt: "22:00", EnableAt: "06:00"}, w.Window)

	got, err := client.GetClient(ctx, &proto.GetClientRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.Client.Label)
	assert.Equal(t, w.Window, got.Window)
	assert.Nil(t, got.Override)

	renamed, err := client.RenameClient(ctx, &proto.RenameClientRequest{ClientID: "c1", Label: "Study"})
	require.NoError(t, err)
	assert.Equal(t, "Study", renamed.Client.Label)

	list, err := client.ListClients(ctx, &proto.ListClientsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Clients, 1)

	list, err = client.ListClients(ctx, &proto.ListClientsRequest{StateFilter: "paused"})
	require.NoError(t, err)
	assert.Empty(t, list.Clients)

	_, err = client.ClearWindow(ctx, &proto.ClearWindowRequest{ClientID: "c1"})
	require.NoError(t, err)

	_, err = client.DeleteClient(ctx, &proto.DeleteClientRequest{ClientID: "c1"})
	require.NoError(t, err)

	_, err = client.GetClient(ctx, &proto.GetClientRequest{ClientID: "c1"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServerHeartbeat(t *testing.T) {
	client, _ := startServer(t, NewServer(newTestManager(t)))
	ctx := context.Background()

	_, err := client.Heartbeat(ctx, &proto.HeartbeatRequest{ClientID: "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1"})
	require.NoError(t, err)

	_, err = client.Heartbeat(ctx, &proto.HeartbeatRequest{ClientID: "c1", ActualState: "sleeping"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := client.Heartbeat(ctx, &proto.HeartbeatRequest{ClientID: "c1", Address: "10.0.0.9", ActualState: "unpaused"})
	require.NoError(t, err)
	assert.Equal(t, "unpaused", resp.DesiredState)
	assert.Nil(t, resp.Window)
	assert.False(t, resp.ServerTime.IsZero())

	got, err := client.GetClient(ctx, &proto.GetClientRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.Client.Address)
	assert.Equal(t, "unpaused", got.Client.ActualState)
}

func TestServerErrorMapping(t *testing.T) {
	client, _ := startServer(t, NewServer(newTestManager(t)))
	ctx := context.Background()

	_, err := client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "window on unknown client",
			call: func() error {
				_, err := client.SetWindow(ctx, &proto.SetWindowRequest{ClientID: "ghost", DisableAt: "22:00", EnableAt: "06:00"})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "malformed window",
			call: func() error {
				_, err := client.SetWindow(ctx, &proto.SetWindowRequest{ClientID: "c1", DisableAt: "22:75", EnableAt: "06:00"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "bad override state",
			call: func() error {
				_, err := client.SetOverride(ctx, &proto.SetOverrideRequest{ClientID: "c1", State: "off"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "empty client id",
			call: func() error {
				_, err := client.RegisterClient(ctx, &proto.RegisterClientRequest{})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "bad state filter",
			call: func() error {
				_, err := client.ListClients(ctx, &proto.ListClientsRequest{StateFilter: "maybe"})
				return err
			},
			code: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(tt.call()))
		})
	}
}

func TestServerOverride(t *testing.T) {
	client, _ := startServer(t, NewServer(newTestManager(t)))
	ctx := context.Background()

	_, err := client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1"})
	require.NoError(t, err)

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	resp, err := client.SetOverride(ctx, &proto.SetOverrideRequest{ClientID: "c1", State: "paused", Until: until})
	require.NoError(t, err)
	assert.Equal(t, "paused", resp.Override.State)
	assert.True(t, until.Equal(resp.Override.Until))

	got, err := client.GetClient(ctx, &proto.GetClientRequest{ClientID: "c1"})
	require.NoError(t, err)
	require.NotNil(t, got.Override)
	assert.Equal(t, "paused", got.Override.State)
	assert.True(t, until.Equal(got.NextChange), "the override expiry is the next change")

	_, err = client.ClearOverride(ctx, &proto.ClearOverrideRequest{ClientID: "c1"})
	require.NoError(t, err)

	got, err = client.GetClient(ctx, &proto.GetClientRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.Nil(t, got.Override)
	assert.True(t, got.NextChange.IsZero(), "no schedule, no next change")
}

func TestServerStreamEvents(t *testing.T) {
	mgr := newTestManager(t)
	client, _ := startServer(t, NewServer(mgr))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamEvents(ctx, &proto.StreamEventsRequest{EventTypes: []string{"window.set"}})
	require.NoError(t, err)

	// Wait for the subscription before generating events
	require.Eventually(t, func() bool {
		return mgr.GetEventBroker().SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	_, err = client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1"})
	require.NoError(t, err)
	_, err = client.SetWindow(ctx, &proto.SetWindowRequest{ClientID: "c1", DisableAt: "21:00", EnableAt: "07:00"})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "window.set", ev.Type)
	assert.Equal(t, "c1", ev.ClientID)
	assert.NotEmpty(t, ev.ID)
}

func TestReadOnlyServer(t *testing.T) {
	client, _ := startServer(t, NewReadOnlyServer(newTestManager(t)))
	ctx := context.Background()

	_, err := client.ListClients(ctx, &proto.ListClientsRequest{})
	assert.NoError(t, err)

	_, err = client.RegisterClient(ctx, &proto.RegisterClientRequest{ClientID: "c1"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.SetWindow(ctx, &proto.SetWindowRequest{ClientID: "c1", DisableAt: "22:00", EnableAt: "06:00"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	_, conn := startServer(t, NewServer(newTestManager(t)))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: proto.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestIsReadOnlyMethod(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{proto.Downtime_ListClients_FullMethodName, true},
		{proto.Downtime_GetClient_FullMethodName, true},
		{proto.Downtime_StreamEvents_FullMethodName, true},
		{proto.Downtime_SetWindow_FullMethodName, false},
		{proto.Downtime_Heartbeat_FullMethodName, false},
		{proto.Downtime_DeleteClient_FullMethodName, false},
		{healthpb.Health_Check_FullMethodName, true},
		{"/other.v1.Other/ListThings", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, isReadOnlyMethod(tt.method))
		})
	}
}

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultTimeout bounds every unary call
const DefaultTimeout = 10 * time.Second

// Client wraps the Downtime gRPC client for the CLI and the agent
type Client struct {
	conn    *grpc.ClientConn
	client  proto.DowntimeClient
	timeout time.Duration
}

// NewClient creates a client for addr. addr is host:port for the TCP API
// or unix:///path/to/socket for the local read-only socket. Extra dial
// options are appended to the defaults.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}

	return &Client{
		conn:    conn,
		client:  proto.NewDowntimeClient(conn),
		timeout: DefaultTimeout,
	}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SetTimeout changes the per-call timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// RegisterClient creates or refreshes a client
func (c *Client) RegisterClient(ctx context.Context, id, address, label string) (*proto.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.RegisterClient(ctx, &proto.RegisterClientRequest{
		ClientID: id,
		Address:  address,
		Label:    label,
	})
	if err != nil {
		return nil, err
	}

	return resp.Client, nil
}

// Heartbeat reports contact and returns the desired state
func (c *Client) Heartbeat(ctx context.Context, req *proto.HeartbeatRequest) (*proto.HeartbeatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Heartbeat(ctx, req)
}

// GetClient gets a client with its window and override
func (c *Client) GetClient(ctx context.Context, id string) (*proto.GetClientResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.GetClient(ctx, &proto.GetClientRequest{ClientID: id})
}

// ListClients lists clients, optionally only those in one desired state
func (c *Client) ListClients(ctx context.Context, stateFilter string) ([]*proto.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.ListClients(ctx, &proto.ListClientsRequest{StateFilter: stateFilter})
	if err != nil {
		return nil, err
	}

	return resp.Clients, nil
}

// RenameClient sets a client's label
func (c *Client) RenameClient(ctx context.Context, id, label string) (*proto.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.RenameClient(ctx, &proto.RenameClientRequest{
		ClientID: id,
		Label:    label,
	})
	if err != nil {
		return nil, err
	}

	return resp.Client, nil
}

// DeleteClient deletes a client
func (c *Client) DeleteClient(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.DeleteClient(ctx, &proto.DeleteClientRequest{ClientID: id})
	return err
}

// SetWindow sets a client's daily downtime window
func (c *Client) SetWindow(ctx context.Context, id, disableAt, enableAt string) (*proto.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.SetWindow(ctx, &proto.SetWindowRequest{
		ClientID:  id,
		DisableAt: disableAt,
		EnableAt:  enableAt,
	})
	if err != nil {
		return nil, err
	}

	return resp.Window, nil
}

// ClearWindow removes a client's window
func (c *Client) ClearWindow(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.ClearWindow(ctx, &proto.ClearWindowRequest{ClientID: id})
	return err
}

// SetOverride pins a client to state; a zero until never expires
func (c *Client) SetOverride(ctx context.Context, id, state string, until time.Time) (*proto.Override, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.SetOverride(ctx, &proto.SetOverrideRequest{
		ClientID: id,
		State:    state,
		Until:    until,
	})
	if err != nil {
		return nil, err
	}

	return resp.Override, nil
}

// ClearOverride returns a client to its window
func (c *Client) ClearOverride(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.ClearOverride(ctx, &proto.ClearOverrideRequest{ClientID: id})
	return err
}

// StreamEvents opens the event stream. It runs until ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, req *proto.StreamEventsRequest) (grpc.ServerStreamingClient[proto.Event], error) {
	return c.client.StreamEvents(ctx, req)
}

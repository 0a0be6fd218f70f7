package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"github.com/cuemby/downtime/api/proto"
	"github.com/cuemby/downtime/pkg/events"
	"github.com/cuemby/downtime/pkg/heartbeat"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/manager"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/cuemby/downtime/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const stopTimeout = 5 * time.Second

// Server implements the Downtime gRPC service on top of a Manager
type Server struct {
	proto.UnimplementedDowntimeServer
	manager *manager.Manager
	grpc    *grpc.Server
	health  *health.Server
}

// NewServer creates a new API server. Extra unary interceptors run after
// the metrics interceptor.
func NewServer(mgr *manager.Manager, interceptors ...grpc.UnaryServerInterceptor) *Server {
	chain := append([]grpc.UnaryServerInterceptor{MetricsInterceptor()}, interceptors...)
	s := &Server{
		manager: mgr,
		grpc:    grpc.NewServer(grpc.ChainUnaryInterceptor(chain...)),
		health:  health.NewServer(),
	}

	proto.RegisterDowntimeServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(proto.ServiceName, healthpb.HealthCheckResponse_SERVING)

	metrics.RegisterComponent("api", true, "")
	return s
}

// NewReadOnlyServer creates a server that rejects every write, for the
// local Unix socket
func NewReadOnlyServer(mgr *manager.Manager) *Server {
	return NewServer(mgr, ReadOnlyInterceptor())
}

// Start listens on addr and serves until Stop
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}

	log.Logger.Info().Str("addr", addr).Msg("gRPC API listening")
	return s.Serve(lis)
}

// StartUnix listens on a Unix socket, replacing a stale socket file
func (s *Server) StartUnix(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %v", err)
	}
	if err := os.Chmod(path, 0660); err != nil {
		lis.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Logger.Info().Str("socket", path).Msg("Read-only gRPC API listening")
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop gracefully stops the gRPC server. Open event streams never finish
// on their own, so after stopTimeout remaining RPCs are cut off.
func (s *Server) Stop() {
	if s.grpc == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.grpc.Stop()
	}
}

// RegisterClient creates or refreshes a client
func (s *Server) RegisterClient(ctx context.Context, req *proto.RegisterClientRequest) (*proto.RegisterClientResponse, error) {
	address := req.Address
	if address == "" {
		address = peerAddress(ctx)
	}

	c, err := s.manager.RegisterClient(req.ClientID, address, req.Label)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.RegisterClientResponse{Client: clientToProto(c)}, nil
}

// Heartbeat records contact from an agent and returns its desired state
func (s *Server) Heartbeat(ctx context.Context, req *proto.HeartbeatRequest) (*proto.HeartbeatResponse, error) {
	hb := heartbeat.Request{
		ClientID:   req.ClientID,
		Address:    req.Address,
		ObservedAt: req.ObservedAt,
	}
	if hb.Address == "" {
		hb.Address = peerAddress(ctx)
	}
	if req.ActualState != "" {
		state, err := types.ParseState(req.ActualState)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		hb.ActualState = state
	}

	resp, err := s.manager.Heartbeat(ctx, hb)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.HeartbeatResponse{
		DesiredState: string(resp.DesiredState),
		Window:       windowToProto(resp.Window),
		Override:     overrideToProto(resp.Override),
		ServerTime:   resp.ServerTime,
	}, nil
}

// GetClient returns one client with its window and active override
func (s *Server) GetClient(ctx context.Context, req *proto.GetClientRequest) (*proto.GetClientResponse, error) {
	c, err := s.manager.GetClient(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	sc, err := s.manager.Schedule(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &proto.GetClientResponse{
		Client:   clientToProto(c),
		Window:   windowToProto(sc.Window),
		Override: overrideToProto(sc.Override),
	}
	if next, ok := s.manager.NextChange(sc); ok {
		resp.NextChange = next
	}
	return resp, nil
}

// ListClients returns all clients, optionally filtered by desired state
func (s *Server) ListClients(ctx context.Context, req *proto.ListClientsRequest) (*proto.ListClientsResponse, error) {
	if req.StateFilter != "" {
		if _, err := types.ParseState(req.StateFilter); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	clients := s.manager.ListClients()
	out := make([]*proto.Client, 0, len(clients))
	for _, c := range clients {
		if req.StateFilter != "" && string(c.DesiredState) != req.StateFilter {
			continue
		}
		out = append(out, clientToProto(c))
	}
	return &proto.ListClientsResponse{Clients: out}, nil
}

// RenameClient sets a client's label
func (s *Server) RenameClient(ctx context.Context, req *proto.RenameClientRequest) (*proto.RenameClientResponse, error) {
	c, err := s.manager.RenameClient(req.ClientID, req.Label)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.RenameClientResponse{Client: clientToProto(c)}, nil
}

// DeleteClient removes a client
func (s *Server) DeleteClient(ctx context.Context, req *proto.DeleteClientRequest) (*proto.DeleteClientResponse, error) {
	if err := s.manager.DeleteClient(ctx, req.ClientID); err != nil {
		return nil, toStatus(err)
	}
	return &proto.DeleteClientResponse{}, nil
}

// SetWindow stores a client's downtime window
func (s *Server) SetWindow(ctx context.Context, req *proto.SetWindowRequest) (*proto.SetWindowResponse, error) {
	w, err := s.manager.SetWindow(ctx, req.ClientID, req.DisableAt, req.EnableAt)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.SetWindowResponse{Window: windowToProto(&w)}, nil
}

// ClearWindow removes a client's downtime window
func (s *Server) ClearWindow(ctx context.Context, req *proto.ClearWindowRequest) (*proto.ClearWindowResponse, error) {
	if err := s.manager.ClearWindow(ctx, req.ClientID); err != nil {
		return nil, toStatus(err)
	}
	return &proto.ClearWindowResponse{}, nil
}

// SetOverride pins a client to a state
func (s *Server) SetOverride(ctx context.Context, req *proto.SetOverrideRequest) (*proto.SetOverrideResponse, error) {
	state, err := types.ParseState(req.State)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	o, err := s.manager.SetOverride(ctx, req.ClientID, state, req.Until)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.SetOverrideResponse{Override: overrideToProto(&o)}, nil
}

// ClearOverride returns a client to its window
func (s *Server) ClearOverride(ctx context.Context, req *proto.ClearOverrideRequest) (*proto.ClearOverrideResponse, error) {
	if err := s.manager.ClearOverride(ctx, req.ClientID); err != nil {
		return nil, toStatus(err)
	}
	return &proto.ClearOverrideResponse{}, nil
}

// StreamEvents streams events to the client until it disconnects
func (s *Server) StreamEvents(req *proto.StreamEventsRequest, stream grpc.ServerStreamingServer[proto.Event]) error {
	broker := s.manager.GetEventBroker()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub:
			if !ok {
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if !matchesFilter(event, req) {
				continue
			}
			if err := stream.Send(eventToProto(event)); err != nil {
				return err
			}
		}
	}
}

func matchesFilter(event *events.Event, req *proto.StreamEventsRequest) bool {
	if req.ClientID != "" && event.ClientID != req.ClientID {
		return false
	}
	if len(req.EventTypes) > 0 && !slices.Contains(req.EventTypes, string(event.Type)) {
		return false
	}
	return true
}

// toStatus maps domain errors to gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrInvalidWindow), errors.Is(err, types.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func peerAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func clientToProto(c types.Client) *proto.Client {
	return &proto.Client{
		ID:               c.ID,
		Address:          c.Address,
		Label:            c.Label,
		DesiredState:     string(c.DesiredState),
		ActualState:      string(c.ActualState),
		ActualObservedAt: c.ActualObservedAt,
		LastContact:      c.LastContact,
		CreatedAt:        c.CreatedAt,
		Connected:        c.Connected,
	}
}

func windowToProto(w *types.Window) *proto.Window {
	if w == nil {
		return nil
	}
	return &proto.Window{
		DisableAt: w.DisableAt.String(),
		EnableAt:  w.EnableAt.String(),
	}
}

func overrideToProto(o *types.Override) *proto.Override {
	if o == nil {
		return nil
	}
	return &proto.Override{
		State: string(o.State),
		Until: o.Until,
	}
}

func eventToProto(e *events.Event) *proto.Event {
	return &proto.Event{
		ID:        e.ID,
		Type:      string(e.Type),
		ClientID:  e.ClientID,
		Timestamp: e.Timestamp,
		Message:   e.Message,
		Metadata:  e.Metadata,
	}
}


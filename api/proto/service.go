package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "downtime.v1.Downtime"

const (
	Downtime_RegisterClient_FullMethodName = "/" + ServiceName + "/RegisterClient"
	Downtime_Heartbeat_FullMethodName      = "/" + ServiceName + "/Heartbeat"
	Downtime_GetClient_FullMethodName      = "/" + ServiceName + "/GetClient"
	Downtime_ListClients_FullMethodName    = "/" + ServiceName + "/ListClients"
	Downtime_RenameClient_FullMethodName   = "/" + ServiceName + "/RenameClient"
	Downtime_DeleteClient_FullMethodName   = "/" + ServiceName + "/DeleteClient"
	Downtime_SetWindow_FullMethodName      = "/" + ServiceName + "/SetWindow"
	Downtime_ClearWindow_FullMethodName    = "/" + ServiceName + "/ClearWindow"
	Downtime_SetOverride_FullMethodName    = "/" + ServiceName + "/SetOverride"
	Downtime_ClearOverride_FullMethodName  = "/" + ServiceName + "/ClearOverride"
	Downtime_StreamEvents_FullMethodName   = "/" + ServiceName + "/StreamEvents"
)

// DowntimeServer is the server API for the Downtime service
type DowntimeServer interface {
	RegisterClient(context.Context, *RegisterClientRequest) (*RegisterClientResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	GetClient(context.Context, *GetClientRequest) (*GetClientResponse, error)
	ListClients(context.Context, *ListClientsRequest) (*ListClientsResponse, error)
	RenameClient(context.Context, *RenameClientRequest) (*RenameClientResponse, error)
	DeleteClient(context.Context, *DeleteClientRequest) (*DeleteClientResponse, error)
	SetWindow(context.Context, *SetWindowRequest) (*SetWindowResponse, error)
	ClearWindow(context.Context, *ClearWindowRequest) (*ClearWindowResponse, error)
	SetOverride(context.Context, *SetOverrideRequest) (*SetOverrideResponse, error)
	ClearOverride(context.Context, *ClearOverrideRequest) (*ClearOverrideResponse, error)
	StreamEvents(*StreamEventsRequest, grpc.ServerStreamingServer[Event]) error
}

// UnimplementedDowntimeServer can be embedded to have forward compatible
// implementations
type UnimplementedDowntimeServer struct{}

func (UnimplementedDowntimeServer) RegisterClient(context.Context, *RegisterClientRequest) (*RegisterClientResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterClient not implemented")
}
func (UnimplementedDowntimeServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedDowntimeServer) GetClient(context.Context, *GetClientRequest) (*GetClientResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetClient not implemented")
}
func (UnimplementedDowntimeServer) ListClients(context.Context, *ListClientsRequest) (*ListClientsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListClients not implemented")
}
func (UnimplementedDowntimeServer) RenameClient(context.Context, *RenameClientRequest) (*RenameClientResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RenameClient not implemented")
}
func (UnimplementedDowntimeServer) DeleteClient(context.Context, *DeleteClientRequest) (*DeleteClientResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteClient not implemented")
}
func (UnimplementedDowntimeServer) SetWindow(context.Context, *SetWindowRequest) (*SetWindowResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetWindow not implemented")
}
func (UnimplementedDowntimeServer) ClearWindow(context.Context, *ClearWindowRequest) (*ClearWindowResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearWindow not implemented")
}
func (UnimplementedDowntimeServer) SetOverride(context.Context, *SetOverrideRequest) (*SetOverrideResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetOverride not implemented")
}
func (UnimplementedDowntimeServer) ClearOverride(context.Context, *ClearOverrideRequest) (*ClearOverrideResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearOverride not implemented")
}
func (UnimplementedDowntimeServer) StreamEvents(*StreamEventsRequest, grpc.ServerStreamingServer[Event]) error {
	return status.Error(codes.Unimplemented, "method StreamEvents not implemented")
}

// RegisterDowntimeServer registers srv on s
func RegisterDowntimeServer(s grpc.ServiceRegistrar, srv DowntimeServer) {
	s.RegisterService(&Downtime_ServiceDesc, srv)
}

// Downtime_ServiceDesc is the grpc.ServiceDesc for the Downtime service
var Downtime_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DowntimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterClient", Handler: unaryHandler(Downtime_RegisterClient_FullMethodName, DowntimeServer.RegisterClient)},
		{MethodName: "Heartbeat", Handler: unaryHandler(Downtime_Heartbeat_FullMethodName, DowntimeServer.Heartbeat)},
		{MethodName: "GetClient", Handler: unaryHandler(Downtime_GetClient_FullMethodName, DowntimeServer.GetClient)},
		{MethodName: "ListClients", Handler: unaryHandler(Downtime_ListClients_FullMethodName, DowntimeServer.ListClients)},
		{MethodName: "RenameClient", Handler: unaryHandler(Downtime_RenameClient_FullMethodName, DowntimeServer.RenameClient)},
		{MethodName: "DeleteClient", Handler: unaryHandler(Downtime_DeleteClient_FullMethodName, DowntimeServer.DeleteClient)},
		{MethodName: "SetWindow", Handler: unaryHandler(Downtime_SetWindow_FullMethodName, DowntimeServer.SetWindow)},
		{MethodName: "ClearWindow", Handler: unaryHandler(Downtime_ClearWindow_FullMethodName, DowntimeServer.ClearWindow)},
		{MethodName: "SetOverride", Handler: unaryHandler(Downtime_SetOverride_FullMethodName, DowntimeServer.SetOverride)},
		{MethodName: "ClearOverride", Handler: unaryHandler(Downtime_ClearOverride_FullMethodName, DowntimeServer.ClearOverride)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       streamEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "api/proto/service.go",
}

// unaryHandler adapts a DowntimeServer method to a grpc.MethodHandler,
// running it through the server's interceptor chain when one is set
func unaryHandler[Req, Resp any](fullMethod string, call func(DowntimeServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DowntimeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DowntimeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	m := new(StreamEventsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DowntimeServer).StreamEvents(m, &grpc.GenericServerStream[StreamEventsRequest, Event]{ServerStream: stream})
}

// DowntimeClient is the client API for the Downtime service. Every call is
// sent with the JSON content-subtype.
type DowntimeClient interface {
	RegisterClient(ctx context.Context, in *RegisterClientRequest, opts ...grpc.CallOption) (*RegisterClientResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	GetClient(ctx context.Context, in *GetClientRequest, opts ...grpc.CallOption) (*GetClientResponse, error)
	ListClients(ctx context.Context, in *ListClientsRequest, opts ...grpc.CallOption) (*ListClientsResponse, error)
	RenameClient(ctx context.Context, in *RenameClientRequest, opts ...grpc.CallOption) (*RenameClientResponse, error)
	DeleteClient(ctx context.Context, in *DeleteClientRequest, opts ...grpc.CallOption) (*DeleteClientResponse, error)
	SetWindow(ctx context.Context, in *SetWindowRequest, opts ...grpc.CallOption) (*SetWindowResponse, error)
	ClearWindow(ctx context.Context, in *ClearWindowRequest, opts ...grpc.CallOption) (*ClearWindowResponse, error)
	SetOverride(ctx context.Context, in *SetOverrideRequest, opts ...grpc.CallOption) (*SetOverrideResponse, error)
	ClearOverride(ctx context.Context, in *ClearOverrideRequest, opts ...grpc.CallOption) (*ClearOverrideResponse, error)
	StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error)
}

type downtimeClient struct {
	cc grpc.ClientConnInterface
}

// NewDowntimeClient creates a client on an existing connection
func NewDowntimeClient(cc grpc.ClientConnInterface) DowntimeClient {
	return &downtimeClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *downtimeClient) RegisterClient(ctx context.Context, in *RegisterClientRequest, opts ...grpc.CallOption) (*RegisterClientResponse, error) {
	return invoke[RegisterClientResponse](ctx, c.cc, Downtime_RegisterClient_FullMethodName, in, opts)
}

func (c *downtimeClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	return invoke[HeartbeatResponse](ctx, c.cc, Downtime_Heartbeat_FullMethodName, in, opts)
}

func (c *downtimeClient) GetClient(ctx context.Context, in *GetClientRequest, opts ...grpc.CallOption) (*GetClientResponse, error) {
	return invoke[GetClientResponse](ctx, c.cc, Downtime_GetClient_FullMethodName, in, opts)
}

func (c *downtimeClient) ListClients(ctx context.Context, in *ListClientsRequest, opts ...grpc.CallOption) (*ListClientsResponse, error) {
	return invoke[ListClientsResponse](ctx, c.cc, Downtime_ListClients_FullMethodName, in, opts)
}

func (c *downtimeClient) RenameClient(ctx context.Context, in *RenameClientRequest, opts ...grpc.CallOption) (*RenameClientResponse, error) {
	return invoke[RenameClientResponse](ctx, c.cc, Downtime_RenameClient_FullMethodName, in, opts)
}

func (c *downtimeClient) DeleteClient(ctx context.Context, in *DeleteClientRequest, opts ...grpc.CallOption) (*DeleteClientResponse, error) {
	return invoke[DeleteClientResponse](ctx, c.cc, Downtime_DeleteClient_FullMethodName, in, opts)
}

func (c *downtimeClient) SetWindow(ctx context.Context, in *SetWindowRequest, opts ...grpc.CallOption) (*SetWindowResponse, error) {
	return invoke[SetWindowResponse](ctx, c.cc, Downtime_SetWindow_FullMethodName, in, opts)
}

func (c *downtimeClient) ClearWindow(ctx context.Context, in *ClearWindowRequest, opts ...grpc.CallOption) (*ClearWindowResponse, error) {
	return invoke[ClearWindowResponse](ctx, c.cc, Downtime_ClearWindow_FullMethodName, in, opts)
}

func (c *downtimeClient) SetOverride(ctx context.Context, in *SetOverrideRequest, opts ...grpc.CallOption) (*SetOverrideResponse, error) {
	return invoke[SetOverrideResponse](ctx, c.cc, Downtime_SetOverride_FullMethodName, in, opts)
}

func (c *downtimeClient) ClearOverride(ctx context.Context, in *ClearOverrideRequest, opts ...grpc.CallOption) (*ClearOverrideResponse, error) {
	return invoke[ClearOverrideResponse](ctx, c.cc, Downtime_ClearOverride_FullMethodName, in, opts)
}

func (c *downtimeClient) StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	stream, err := c.cc.NewStream(ctx, &Downtime_ServiceDesc.Streams[0], Downtime_StreamEvents_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[StreamEventsRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

package api

import (
	"context"
	"strings"

	"github.com/cuemby/downtime/api/proto"
	"github.com/cuemby/downtime/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// MetricsInterceptor records request counts by status code and latency for
// every unary call
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// readOnlyMethods are the calls allowed on the local Unix socket. Streams
// are not intercepted here; StreamEvents is the only one and it is read-only.
var readOnlyMethods = map[string]bool{
	proto.Downtime_GetClient_FullMethodName:    true,
	proto.Downtime_ListClients_FullMethodName:  true,
	proto.Downtime_StreamEvents_FullMethodName: true,
	healthpb.Health_Check_FullMethodName:       true,
}

// ReadOnlyInterceptor rejects every unary call that could change a client
// or its schedule. It guards the Unix socket so local tooling can inspect
// clients without being able to change them.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"%s not allowed on the read-only socket - use the TCP API address (--server)",
				methodName(info.FullMethod),
			)
		}
		return handler(ctx, req)
	}
}

// methodName extracts the method from a full path
// (e.g., "/downtime.v1.Downtime/ListClients" -> "ListClients")
func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}

func isReadOnlyMethod(fullMethod string) bool {
	return readOnlyMethods[fullMethod]
}

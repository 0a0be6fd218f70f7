/*
Package api exposes the controller over the network.

Two servers live here:

  - Server: the gRPC control API (service downtime.v1.Downtime) used by
    agents for registration and heartbeats and by the operator CLI for
    schedule changes. Messages use the JSON codec from api/proto.
  - HTTPServer: the HTTP listener serving the websocket endpoint
    GET /ws/{client_id}, /health (with client counts), /ready, /live,
    /health/components and /metrics.

# gRPC methods

	RegisterClient   create or refresh a client (agents, at startup)
	Heartbeat        record contact, return desired state and schedule
	GetClient        client plus its window and active override
	ListClients      all clients, optional desired-state filter
	RenameClient     set the friendly label
	DeleteClient     remove the client and close its channel
	SetWindow        set the daily downtime window ("HH:MM" bounds)
	ClearWindow      remove the window; the client fails open
	SetOverride      pin a state, optionally until a time
	ClearOverride    return to the window
	StreamEvents     server stream of controller events

The standard grpc.health.v1 service is registered on the same server.

# Errors

Domain errors are translated with toStatus:

	types.ErrNotFound          codes.NotFound
	types.ErrInvalidWindow     codes.InvalidArgument
	types.ErrInvalidArgument   codes.InvalidArgument
	types.ErrStoreUnavailable  codes.Unavailable

Anything else is codes.Internal.

# Interceptors

MetricsInterceptor counts every unary call by method and status code and
observes its latency. ReadOnlyInterceptor allows only GetClient, ListClients,
StreamEvents and the gRPC health check; NewReadOnlyServer uses it for the
local Unix socket.

# Readiness

/ready passes once the store answers a read and the reconciler has
finished its first tick. The message names the first failing check.

# Usage

	srv := api.NewServer(mgr)
	go srv.Start(":7400")
	defer srv.Stop()

	hs := api.NewHTTPServer(mgr)
	go hs.Start(":7401")
	defer hs.Shutdown(context.Background())
*/
package api

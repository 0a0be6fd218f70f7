/*
Package manager wires the controller together and exposes the operations the
API layer serves.

A Manager owns one BoltDB store and builds every component on top of it:

	            ┌──────────── Manager ─────────────┐
	 gRPC API ──▶ Register / Heartbeat / SetWindow │
	            │        │            │             │
	            │   ┌────▼────┐  ┌────▼──────┐      │
	            │   │Registry │◀─┤Reconciler │ tick │
	            │   └────┬────┘  └────┬──────┘      │
	            │        │       ┌────▼──────┐      │
	  /ws/{id} ─▶  Hub ──┘       │  Pusher   │──▶ agent
	            │                └───────────┘      │
	            │            BoltDB store           │
	            └───────────────────────────────────┘

# Lifecycle

NewManager opens the store under Config.DataDir and restores every persisted
client into the registry. Restored clients keep their last desired state and
start disconnected; the first reconciliation tick corrects anything that
changed while the controller was down.

Start launches the reconciler and the metrics collector. Shutdown stops
them, closes agent channels and then the store.

# Writes

Schedule writes (SetWindow, ClearWindow, SetOverride, ClearOverride) go to
the store first, then trigger an early reconciliation tick. Desired state is
never written directly by these calls; it only changes when the reconciler
evaluates the new schedule. A connected agent also receives the new schedule
so it can keep enforcing offline.

DeleteClient sends a shutdown notice over the channel when one is attached,
then removes the client from store and registry. Later heartbeats with the
same id are rejected.

# Errors

Store failures wrap types.ErrStoreUnavailable, unknown ids wrap
types.ErrNotFound, and bad input wraps types.ErrInvalidWindow or
types.ErrInvalidArgument. The API layer maps these to status codes.

# Usage

	mgr, err := manager.NewManager(&manager.Config{
		DataDir:      "/var/lib/downtime",
		TickInterval: 30 * time.Second,
		PushPolicy:   retry.DefaultPolicy(),
	})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	mgr.Start(ctx)
	mux.Handle("GET /ws/{client_id}", mgr.Hub())
*/
package manager

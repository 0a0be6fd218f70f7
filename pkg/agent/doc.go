/*
Package agent runs on each remote client and keeps its network state in
line with what the controller wants.

Three loops run under one errgroup:

	heartbeat: register if needed, report the applied state, apply the
	           desired state and remember the window and override
	channel:   hold GET /ws/{client_id} open, apply pushed states and
	           confirm each with a state_report frame; reconnect with
	           backoff
	offline:   once the controller has been silent for OfflineAfter,
	           evaluate the last known schedule locally

All three apply states through an actuator.Idempotent, so the same state
arriving by push, heartbeat and local evaluation touches the host once.

The client id is generated once (LoadOrCreateID) and never changes. The
agent registers once per run. After that, a NotFound answer to a heartbeat
or a 404 on the channel means the operator deleted the client, the same as
a shutdown frame: the agent unblocks the host, forgets the saved schedule
and Run returns ErrShutdown. Deletion therefore reaches the host even when
the shutdown frame is lost.

The last schedule received is written to Config.StateFile so a host that
reboots while the controller is down still follows its window.
*/
package agent

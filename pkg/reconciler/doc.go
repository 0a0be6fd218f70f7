/*
Package reconciler keeps every client's desired state in line with its
downtime schedule.

The reconciler runs on a fixed interval (30 seconds by default) and can be
triggered early after an operator changes a schedule:

	┌────────────────────────────────────────────────────────────┐
	│                  Reconciliation Tick                       │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	                 ▼
	   Store.ListActiveSchedules ──── error ──▶ skip tick, keep states
	                 │
	                 ▼
	   for each client (schedule row, or none → unpaused)
	                 │
	                 ▼
	   override active? ── yes ──▶ override state
	                 │ no (expired overrides are cleared)
	                 ▼
	   window.TargetState(clock in configured zone)
	                 │
	                 ▼
	   Registry.SetDesiredState ── unchanged ──▶ done
	                 │ changed
	                 ▼
	   persist, publish event, Dispatcher.Enqueue

# Fault isolation

Each client is evaluated inside its own recover. A bad record, a failing
write or a panic affects only that client; the rest of the tick runs.

# Dispatching

Pushes never run on the reconciliation goroutine. The Dispatcher keeps at
most one push per client in flight. Requests that arrive while a push is
running collapse into a single follow-up, and every push reads the desired
state at the moment it starts, so a flapping schedule cannot deliver a
stale state last.

# Convergence

A push can fail or find no channel. Nothing is retried at this level: the
agent's heartbeat returns the desired state, so every client converges
within one heartbeat interval plus one tick.
*/
package reconciler

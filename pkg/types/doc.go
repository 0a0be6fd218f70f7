/*
Package types defines the core data structures shared by every downtime
component.

The model is small on purpose: a Client carries the desired state the
controller wants enforced and the actual state the agent last confirmed; a
Window is a daily time-of-day interval during which the client is paused;
an Override pins a client to a state regardless of its window.

# State

A client is always either paused or unpaused:

	StateUnpaused  network open (the fail-open default)
	StatePaused    network blocked

Desired state is authoritative and only the reconciler changes it. Actual
state is reported by the agent and is used for drift detection only.

# Windows

A Window has a DisableAt and an EnableAt time-of-day, both inclusive:

	06:00-08:00   paused 06:00:00 through 08:00:00
	22:00-06:00   paused 22:00:00 through 23:59:59 and 00:00:00 through 06:00:00
	12:00-12:00   degenerate, never paused

TimeOfDay values are seconds since midnight. They marshal to "HH:MM" (or
"HH:MM:SS") so stored records and API payloads stay readable.

# Errors

Sentinel errors (ErrNotFound, ErrTransientDelivery, ErrStoreUnavailable,
ErrInvalidWindow, ErrInvalidArgument) are wrapped with fmt.Errorf and
matched with errors.Is.
*/
package types

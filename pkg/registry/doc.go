/*
Package registry holds the controller's authoritative view of every client:
its desired state, the state its agent last reported, and the push channel
currently attached to it.

All access goes through Registry methods, which share one mutex and hand
out copies. Channels are closed only after the lock is released.

# Channel ownership

At most one channel is attached per client. Attaching a new one supersedes
and closes the old one, and DetachChannel only removes the channel it is
given:

	reg.AttachChannel(id, conn)      // conn replaces any older channel
	...
	reg.DetachChannel(id, conn)      // no-op if a newer conn took over

# Fail open

Clients start unpaused and a client the store has no schedule for is
driven back to unpaused by the reconciler.
*/
package registry

/*
Package channel implements the push side of state delivery: a websocket
hub that agents keep a connection open to, and a pusher that sends state
updates over those connections with bounded retry.

Delivery over a channel is best effort. A client without a channel, or
whose channel died, still converges through its heartbeat.

# Connections

Agents dial GET /ws/{client_id}. The hub answers 404 for ids the registry
does not know, without upgrading. A known id is upgraded, attached to the
registry (closing any older channel for the same id) and immediately sent
its current desired state followed by its schedule.

Frames are CBOR-encoded wire.Message values in binary websocket messages.
Each WSConn runs one write pump and one read pump:

	writePump: data frames (per-frame deadline), pings every Ping
	readPump:  read limit, read deadline renewed by any frame or pong,
	           state_report frames recorded in the registry

Either pump failing closes the connection; the hub then detaches it from
the registry unless a newer connection has already replaced it.

# Pushing

	pusher := channel.NewPusher(reg, retry.DefaultPolicy(), 5*time.Second, broker)
	switch pusher.Push(ctx, id, types.StatePaused) {
	case types.DeliveryDelivered:
	case types.DeliveryUnreachable: // no channel, heartbeat will deliver
	case types.DeliveryFailed:      // channel dropped after 3 attempts
	}

With the default policy a failing push is attempted three times with
waits of 1s, 2s and 4s before the channel is declared dead.
*/
package channel

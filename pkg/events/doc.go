/*
Package events provides an in-memory event broker for controller
notifications.

Components publish events as clients register, change state, connect and
drop their push channels; the API streams them to operators through
StreamEvents.

	Publisher → Event Channel (buffer: 100) → Broadcast Loop
	                                              ↓
	                           Subscriber Channels (buffer: 50 each)

Publish never blocks. An event that does not fit in the queue, or in a
slow subscriber's buffer, is dropped for that subscriber.

Event types:

	client.registered  client.renamed  client.deleted
	client.paused      client.unpaused
	channel.connected  channel.disconnected  channel.dead
	window.set         window.cleared
	override.set       override.cleared

Usage:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.ClientID)
	}
*/
package events

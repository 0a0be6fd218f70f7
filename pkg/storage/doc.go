/*
Package storage provides BoltDB-backed persistence for the controller's
clients, downtime windows and manual overrides.

The storage package implements the Store interface using BoltDB as the
underlying database. Every record is serialized as JSON and kept in its own
bucket, keyed by client id:

	┌──────────────────── BOLTDB STORAGE ────────────────────┐
	│                                                          │
	│  BoltStore  <dataDir>/downtime.db                        │
	│                                                          │
	│  ┌──────────────┬──────────────┬──────────────────┐     │
	│  │ clients      │ windows      │ overrides        │     │
	│  │ (Client ID)  │ (Client ID)  │ (Client ID)      │     │
	│  └──────────────┴──────────────┴──────────────────┘     │
	│                                                          │
	│  Reads:  db.View()   concurrent                          │
	│  Writes: db.Update() serialized, fsync on commit         │
	└──────────────────────────────────────────────────────────┘

# Schedules

The reconciler only ever reads through ListActiveSchedules, which joins the
windows and overrides buckets inside a single read transaction and returns
one types.Schedule per client that has either. A client with neither is
not listed and falls back to unpaused.

Any failure of that read is wrapped in types.ErrStoreUnavailable so the
caller can skip the tick and retry on the next one:

	schedules, err := store.ListActiveSchedules(ctx)
	if errors.Is(err, types.ErrStoreUnavailable) {
		// keep the last desired states, try again next tick
	}

# Semantics

Create and Update are the same upsert. A window write replaces the previous
window of the client. DeleteClient removes the client, its window and its
override in one transaction. Lookups of missing keys wrap types.ErrNotFound.
*/
package storage

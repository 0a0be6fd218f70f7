/*
Package log provides structured logging for downtime using zerolog.

A single global zerolog.Logger is configured once at process start via
Init and shared by every package. Components derive child loggers that
carry a component field, and per-client code paths add a client_id field
so a single client's history can be filtered out of the stream:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("reconciler")
	logger.Warn().
		Str("client_id", id).
		Err(err).
		Msg("Failed to persist desired state")

# Output

Console output (the default) is meant for operators running the binaries
interactively:

	2026-03-01T21:00:00Z INF Client paused client_id=3f1c… component=reconciler

JSON output is meant for log shippers:

	{"level":"info","component":"reconciler","client_id":"3f1c…","time":"…","message":"Client paused"}

# Levels

debug, info, warn and error are accepted from configuration; ParseLevel
rejects anything else so a typo in a config file fails fast instead of
silently logging at the wrong level.

Per-client failures are logged at warn or error and never returned to
sibling clients. Nothing logs at fatal; commands return errors to cobra.

Config.Process stamps every entry with the binary that wrote it
("controller" or "agent").
*/
package log

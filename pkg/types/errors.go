package types

import "errors"

var (
	// ErrNotFound is returned for unknown client ids. Heartbeats and channel
	// connects with an unknown id are rejected, never auto-created.
	ErrNotFound = errors.New("not found")

	// ErrTransientDelivery marks a push that failed after all retries
	ErrTransientDelivery = errors.New("transient delivery failure")

	// ErrStoreUnavailable marks a failed schedule read; the tick is skipped
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidWindow marks a malformed time-of-day at the write boundary
	ErrInvalidWindow = errors.New("invalid window")
)

// ErrInvalidArgument marks other operator input rejected before any write
var ErrInvalidArgument = errors.New("invalid argument")

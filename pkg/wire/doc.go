// Package wire defines the frames exchanged on the push channel between
// the controller and its agents.
//
// Frames are CBOR maps with string keys, encoded deterministically:
//
//	{"action": "state_update", "state": "paused", "observed_at": null}
//
// The decoder ignores unknown keys, so fields can be added without
// breaking deployed agents.
package wire

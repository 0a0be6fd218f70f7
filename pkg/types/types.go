package types

import (
	"fmt"
	"time"
)

// Client represents a remote host whose network access is governed by a
// downtime window
type Client struct {
	ID               string
	Address          string // Last address reported by register/heartbeat
	Label            string // Human-friendly name
	DesiredState     State  // What the controller wants enforced
	ActualState      State  // What the agent last confirmed (may lag)
	ActualObservedAt time.Time
	LastContact      time.Time
	CreatedAt        time.Time
	Connected        bool // A live push channel is attached (registry only)
}

// State is the enforcement state of a client
type State string

const (
	StatePaused   State = "paused"
	StateUnpaused State = "unpaused"
)

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	return s == StatePaused || s == StateUnpaused
}

// ParseState parses "paused" or "unpaused"
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid state %q", s)
	}
	return st, nil
}

// Window is a daily downtime interval. The client is paused from DisableAt
// through EnableAt, both inclusive. DisableAt > EnableAt wraps midnight and
// DisableAt == EnableAt never pauses.
type Window struct {
	DisableAt TimeOfDay
	EnableAt  TimeOfDay
}

// String renders the window as "HH:MM-HH:MM"
func (w Window) String() string {
	return w.DisableAt.String() + "-" + w.EnableAt.String()
}

// Wraps reports whether the window crosses midnight
func (w Window) Wraps() bool {
	return w.DisableAt > w.EnableAt
}

// Override pins a client to a state regardless of its window. A zero Until
// never expires.
type Override struct {
	State State
	Until time.Time
}

// Active reports whether the override still applies at now
func (o *Override) Active(now time.Time) bool {
	if o == nil || !o.State.Valid() {
		return false
	}
	return o.Until.IsZero() || now.Before(o.Until)
}

// Schedule is one row returned by the store's schedule listing: everything
// that governs a single client's desired state
type Schedule struct {
	ClientID string
	Window   *Window
	Override *Override
}

// DeliveryResult is the outcome of a single push attempt sequence
type DeliveryResult string

const (
	// DeliveryDelivered means the message was written to the channel
	DeliveryDelivered DeliveryResult = "delivered"

	// DeliveryUnreachable means no channel was attached; the heartbeat path
	// will deliver the state instead
	DeliveryUnreachable DeliveryResult = "unreachable"

	// DeliveryFailed means every retry failed and the channel was dropped
	DeliveryFailed DeliveryResult = "failed"
)

package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/cuemby/downtime/pkg/window"
)

// Action identifies what a channel message asks for
type Action string

const (
	// ActionStateUpdate tells the agent which state to enforce (server → agent)
	ActionStateUpdate Action = "state_update"

	// ActionSchedule carries the window and override so the agent can keep
	// enforcing while the controller is unreachable (server → agent)
	ActionSchedule Action = "schedule"

	// ActionStateReport confirms the state the agent applied (agent → server)
	ActionStateReport Action = "state_report"

	// ActionShutdown tells the agent its registration was removed and it
	// should stop (server → agent)
	ActionShutdown Action = "shutdown"
)

var errMissingState = errors.New("missing state")

// Message is the single frame type exchanged on a push channel
type Message struct {
	Action     Action          `cbor:"action"`
	State      types.State     `cbor:"state,omitempty"`
	Window     *types.Window   `cbor:"window,omitempty"`
	Override   *types.Override `cbor:"override,omitempty"`
	ObservedAt time.Time       `cbor:"observed_at"`
}

// StateUpdate builds the push for a desired state
func StateUpdate(state types.State) *Message {
	return &Message{Action: ActionStateUpdate, State: state}
}

// StateReport builds the agent's confirmation of an applied state
func StateReport(state types.State, at time.Time) *Message {
	return &Message{Action: ActionStateReport, State: state, ObservedAt: at}
}

// Validate checks that the action is known and carries what it needs
func (m *Message) Validate() error {
	switch m.Action {
	case ActionStateUpdate, ActionStateReport:
		if m.State == "" {
			return fmt.Errorf("%s: %w", m.Action, errMissingState)
		}
		if !m.State.Valid() {
			return fmt.Errorf("%s: invalid state %q", m.Action, m.State)
		}
	case ActionSchedule:
		if m.State != "" && !m.State.Valid() {
			return fmt.Errorf("%s: invalid state %q", m.Action, m.State)
		}
		if m.Window != nil {
			if err := window.Validate(*m.Window); err != nil {
				return fmt.Errorf("%s: %w", m.Action, err)
			}
		}
	case ActionShutdown:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}

package wire

import (
	"testing"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateUpdateRoundTrip(t *testing.T) {
	data, err := Encode(StateUpdate(types.StatePaused))
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ActionStateUpdate, msg.Action)
	assert.Equal(t, types.StatePaused, msg.State)
	assert.Nil(t, msg.Window)
	assert.Nil(t, msg.Override)
	assert.True(t, msg.ObservedAt.IsZero())
}

func TestScheduleRoundTrip(t *testing.T) {
	until := time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC)
	in := &Message{
		Action:   ActionSchedule,
		State:    types.StateUnpaused,
		Window:   &types.Window{DisableAt: 20 * 3600, EnableAt: 7 * 3600},
		Override: &types.Override{State: types.StatePaused, Until: until},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, out.Window)
	assert.Equal(t, *in.Window, *out.Window)
	require.NotNil(t, out.Override)
	assert.Equal(t, types.StatePaused, out.Override.State)
	assert.True(t, until.Equal(out.Override.Until))
}

func TestEncodingIsDeterministic(t *testing.T) {
	at := time.Unix(1767225600, 0)
	a, err := Encode(StateReport(types.StatePaused, at))
	require.NoError(t, err)
	b, err := Encode(StateReport(types.StatePaused, at))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"state update", Message{Action: ActionStateUpdate, State: types.StatePaused}, false},
		{"state update without state", Message{Action: ActionStateUpdate}, true},
		{"report with bad state", Message{Action: ActionStateReport, State: "asleep"}, true},
		{"schedule without state", Message{Action: ActionSchedule}, false},
		{"schedule with window", Message{Action: ActionSchedule, Window: &types.Window{DisableAt: 22 * 3600, EnableAt: 6 * 3600}}, false},
		{"schedule with out of range window", Message{Action: ActionSchedule, Window: &types.Window{DisableAt: 22 * 3600, EnableAt: types.SecondsPerDay}}, true},
		{"shutdown", Message{Action: ActionShutdown}, false},
		{"unknown action", Message{Action: "reboot"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := Marshal(map[string]string{"action": "reboot"})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	data, err := Marshal(map[string]any{
		"action":  "state_update",
		"state":   "unpaused",
		"version": 2,
	})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, types.StateUnpaused, msg.State)
}

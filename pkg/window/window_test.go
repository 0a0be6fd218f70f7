package window

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/downtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) types.TimeOfDay {
	t.Helper()
	v, err := types.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func win(t *testing.T, disable, enable string) types.Window {
	t.Helper()
	w, err := ParseWindow(disable, enable)
	require.NoError(t, err)
	return w
}

// TestInside tests window membership at boundary instants
func TestInside(t *testing.T) {
	tests := []struct {
		name    string
		disable string
		enable  string
		now     string
		want    bool
	}{
		// Wrapping window 22:00-06:00
		{name: "wrap before disable", disable: "22:00", enable: "06:00", now: "21:59:59", want: false},
		{name: "wrap exactly at disable", disable: "22:00", enable: "06:00", now: "22:00", want: true},
		{name: "wrap one tick before midnight", disable: "22:00", enable: "06:00", now: "23:59:59", want: true},
		{name: "wrap late evening", disable: "22:00", enable: "06:00", now: "23:59", want: true},
		{name: "wrap exactly midnight", disable: "22:00", enable: "06:00", now: "00:00", want: true},
		{name: "wrap just after midnight", disable: "22:00", enable: "06:00", now: "00:01", want: true},
		{name: "wrap exactly at enable", disable: "22:00", enable: "06:00", now: "06:00", want: true},
		{name: "wrap one second after enable", disable: "22:00", enable: "06:00", now: "06:00:01", want: false},
		{name: "wrap morning", disable: "22:00", enable: "06:00", now: "07:00", want: false},
		{name: "wrap noon", disable: "22:00", enable: "06:00", now: "12:00", want: false},

		// Non-wrapping window 06:00-08:00
		{name: "plain inside", disable: "06:00", enable: "08:00", now: "07:00", want: true},
		{name: "plain before", disable: "06:00", enable: "08:00", now: "05:59", want: false},
		{name: "plain after", disable: "06:00", enable: "08:00", now: "08:01", want: false},
		{name: "plain at disable", disable: "06:00", enable: "08:00", now: "06:00", want: true},
		{name: "plain at enable", disable: "06:00", enable: "08:00", now: "08:00", want: true},

		// Scenario window
		{name: "20:00-07:00 at 21:00", disable: "20:00", enable: "07:00", now: "21:00", want: true},

		// Degenerate windows
		{name: "zero width at boundary", disable: "12:00", enable: "12:00", now: "12:00", want: false},
		{name: "zero width elsewhere", disable: "12:00", enable: "12:00", now: "03:00", want: false},
		{name: "zero width midnight", disable: "00:00", enable: "00:00", now: "00:00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Inside(tod(t, tt.now), win(t, tt.disable, tt.enable))
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestInsideDeterministic checks every second of a day for a degenerate
// window and that repeated evaluation agrees
func TestInsideDeterministic(t *testing.T) {
	degenerate := win(t, "09:30", "09:30")
	wrap := win(t, "22:00", "06:00")

	for s := types.TimeOfDay(0); s < types.SecondsPerDay; s += 7 {
		assert.False(t, Inside(s, degenerate))
		assert.Equal(t, Inside(s, wrap), Inside(s, wrap))
	}
}

// TestTargetState tests the state mapping, including fail-open
func TestTargetState(t *testing.T) {
	w := win(t, "06:00", "08:00")

	assert.Equal(t, types.StatePaused, TargetState(tod(t, "07:00"), &w))
	assert.Equal(t, types.StateUnpaused, TargetState(tod(t, "09:00"), &w))
	assert.Equal(t, types.StateUnpaused, TargetState(tod(t, "07:00"), nil))
}

// TestResolve tests override precedence over the window
func TestResolve(t *testing.T) {
	w := win(t, "20:00", "07:00")
	at := time.Date(2026, 5, 4, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, types.StatePaused, Resolve(at, time.UTC, types.Schedule{Window: &w}))

	unpause := &types.Override{State: types.StateUnpaused, Until: at.Add(time.Hour)}
	assert.Equal(t, types.StateUnpaused, Resolve(at, time.UTC, types.Schedule{Window: &w, Override: unpause}))

	expired := &types.Override{State: types.StateUnpaused, Until: at.Add(-time.Minute)}
	assert.Equal(t, types.StatePaused, Resolve(at, time.UTC, types.Schedule{Window: &w, Override: expired}))

	pause := &types.Override{State: types.StatePaused}
	assert.Equal(t, types.StatePaused, Resolve(at, time.UTC, types.Schedule{Override: pause}))

	assert.Equal(t, types.StateUnpaused, Resolve(at, time.UTC, types.Schedule{}))
}

// TestClockLocation tests that the controller zone is honoured
func TestClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2026, 5, 4, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, tod(t, "23:00"), Clock(at, loc))
	assert.Equal(t, tod(t, "21:00"), Clock(at, nil))
}

// TestParseWindow tests validation of operator input
func TestParseWindow(t *testing.T) {
	_, err := ParseWindow("25:00", "06:00")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidWindow))
	assert.Contains(t, err.Error(), "disable time")

	_, err = ParseWindow("22:00", "six")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidWindow))
	assert.Contains(t, err.Error(), "enable time")

	assert.Error(t, Validate(types.Window{DisableAt: -1, EnableAt: 0}))
	assert.Error(t, Validate(types.Window{DisableAt: 0, EnableAt: types.SecondsPerDay}))
	assert.NoError(t, Validate(win(t, "22:00", "06:00")))
}

// TestNextChange tests the upcoming transition instant
func TestNextChange(t *testing.T) {
	w := win(t, "22:00", "06:00")

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "outside, pauses tonight",
			at:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC),
		},
		{
			name: "inside before midnight, unpauses tomorrow",
			at:   time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC),
			want: time.Date(2026, 5, 5, 6, 0, 1, 0, time.UTC),
		},
		{
			name: "inside after midnight, unpauses this morning",
			at:   time.Date(2026, 5, 5, 1, 0, 0, 0, time.UTC),
			want: time.Date(2026, 5, 5, 6, 0, 1, 0, time.UTC),
		},
		{
			name: "just after enable, pauses tonight",
			at:   time.Date(2026, 5, 5, 6, 0, 1, 0, time.UTC),
			want: time.Date(2026, 5, 5, 22, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextChange(tt.at, time.UTC, w)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := NextChange(time.Now(), time.UTC, win(t, "08:00", "08:00"))
	assert.False(t, ok)

	late := win(t, "20:00", "23:59:59")
	got, ok := NextChange(time.Date(2026, 5, 4, 21, 0, 0, 0, time.UTC), time.UTC, late)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), got)
}

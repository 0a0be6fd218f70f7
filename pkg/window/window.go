// Package window decides whether a client should be paused at a given
// time-of-day. Everything here is pure: no clocks, no I/O.
package window

import (
	"fmt"
	"time"

	"github.com/cuemby/downtime/pkg/types"
)

// Inside reports whether now falls inside w. Both ends are inclusive; a
// window whose DisableAt is after its EnableAt wraps past midnight, and a
// zero-width window is never inside.
func Inside(now types.TimeOfDay, w types.Window) bool {
	switch {
	case w.DisableAt == w.EnableAt:
		return false
	case w.Wraps():
		return now >= w.DisableAt || now <= w.EnableAt
	default:
		return w.DisableAt <= now && now <= w.EnableAt
	}
}

// TargetState maps a window to the state a client should be in at now.
// A nil window fails open.
func TargetState(now types.TimeOfDay, w *types.Window) types.State {
	if w != nil && Inside(now, *w) {
		return types.StatePaused
	}
	return types.StateUnpaused
}

// Resolve picks the effective state for a schedule at instant t, observed
// in loc. An active override wins over the window.
func Resolve(t time.Time, loc *time.Location, s types.Schedule) types.State {
	if s.Override.Active(t) {
		return s.Override.State
	}
	return TargetState(Clock(t, loc), s.Window)
}

// Clock returns the time-of-day of t in loc (t's own location when loc is nil)
func Clock(t time.Time, loc *time.Location) types.TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return types.ClockOf(t)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS"
func ParseTimeOfDay(s string) (types.TimeOfDay, error) {
	return types.ParseTimeOfDay(s)
}

// ParseWindow builds a window from two time-of-day strings. It is the
// validation point for operator input.
func ParseWindow(disable, enable string) (types.Window, error) {
	d, err := types.ParseTimeOfDay(disable)
	if err != nil {
		return types.Window{}, fmt.Errorf("disable time: %w", err)
	}
	e, err := types.ParseTimeOfDay(enable)
	if err != nil {
		return types.Window{}, fmt.Errorf("enable time: %w", err)
	}
	return types.Window{DisableAt: d, EnableAt: e}, nil
}

// Validate rejects windows with out-of-range components
func Validate(w types.Window) error {
	if !w.DisableAt.Valid() || !w.EnableAt.Valid() {
		return fmt.Errorf("%w: %d-%d", types.ErrInvalidWindow, int(w.DisableAt), int(w.EnableAt))
	}
	return nil
}

// NextChange returns the next instant after t, observed in loc, at which
// Inside flips for w. It returns false for degenerate windows, which never
// change.
func NextChange(t time.Time, loc *time.Location, w types.Window) (time.Time, bool) {
	if w.DisableAt == w.EnableAt {
		return time.Time{}, false
	}
	if loc != nil {
		t = t.In(loc)
	}

	now := types.ClockOf(t)

	var boundary types.TimeOfDay
	if Inside(now, w) {
		// Last inside second is EnableAt; the flip happens one second later
		boundary = w.EnableAt + 1
		if boundary == types.SecondsPerDay && w.DisableAt == 0 {
			return time.Time{}, false
		}
	} else {
		boundary = w.DisableAt
	}

	day := t
	if boundary == types.SecondsPerDay {
		day = day.AddDate(0, 0, 1)
		boundary = 0
	}
	next := time.Date(day.Year(), day.Month(), day.Day(),
		boundary.Hour(), boundary.Minute(), boundary.Second(), 0, t.Location())
	if !next.After(t) {
		next = time.Date(day.Year(), day.Month(), day.Day()+1,
			boundary.Hour(), boundary.Minute(), boundary.Second(), 0, t.Location())
	}
	return next, true
}

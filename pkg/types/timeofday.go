package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecondsPerDay bounds TimeOfDay
const SecondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time with no date, in seconds since midnight
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour, minute and second
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d out of range", ErrInvalidWindow, hour, minute, second)
	}
	return TimeOfDay(hour*3600 + minute*60 + second), nil
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" (single-digit hours allowed)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: invalid time format %q", ErrInvalidWindow, s)
	}

	fields := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 2 || strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("%w: invalid time format %q", ErrInvalidWindow, s)
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid time format %q", ErrInvalidWindow, s)
		}
		fields[i] = v
	}

	return NewTimeOfDay(fields[0], fields[1], fields[2])
}

// ClockOf returns the time-of-day of t in its own location
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Valid reports whether t lies within a single day
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < SecondsPerDay
}

// Hour returns the hour component
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String formats as HH:MM, or HH:MM:SS when seconds are set
func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText keeps persisted and wire forms human readable
func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d seconds", ErrInvalidWindow, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses the HH:MM form
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	v, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

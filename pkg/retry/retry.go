// Package retry provides a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the number of tries before giving up
	DefaultAttempts = 3

	// DefaultBaseDelay is the wait after the first failure
	DefaultBaseDelay = time.Second

	// DefaultMultiplier grows the wait after each failure
	DefaultMultiplier = 2
)

// ErrExhausted wraps the last error once every attempt has failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy describes how many times to try and how long to wait in between.
// The wait after failure n (0-based) is BaseDelay * Multiplier^n, capped
// at MaxDelay when MaxDelay is set.
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier int
	MaxDelay   time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it to avoid real
	// waits; nil means a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 3 attempts starting at 1s and doubling
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   DefaultAttempts,
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
	}
}

// Delay returns the wait that follows failed attempt n (0-based)
func (p Policy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = DefaultMultiplier
	}
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		d *= time.Duration(mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Schedule lists the wait that follows each failed attempt, e.g. 1s, 2s,
// 4s for the default policy
func (p Policy) Schedule() []time.Duration {
	out := make([]time.Duration, p.attempts())
	for i := range out {
		out[i] = p.Delay(i)
	}
	return out
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Do calls fn until it succeeds, the attempts run out, or ctx is done. fn
// receives the 0-based attempt number. Every failed attempt is followed by
// its backoff wait, the last one included, so the default policy fails
// three times with waits of 1s, 2s and 4s before returning ErrExhausted
// wrapping the last error.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	n := p.attempts()
	for attempt := 0; attempt < n; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %v", err, lastErr)
			}
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}

		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return fmt.Errorf("%w: %v", err, lastErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, n, lastErr)
}

// ErrPermanent stops Do without further attempts when wrapped by fn's error
var ErrPermanent = errors.New("permanent failure")

// Permanent marks err so that Do gives up immediately
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

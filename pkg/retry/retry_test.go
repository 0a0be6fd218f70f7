package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep captures requested waits without sleeping
type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

// TestDelay tests exponential growth and the optional cap
func TestDelay(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, p.Schedule())

	p.MaxDelay = 3 * time.Second
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(10))

	zero := Policy{BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, zero.Delay(1), "multiplier defaults to 2")
	assert.Len(t, zero.Schedule(), 1, "attempts default to 1")
}

// TestDoSucceedsFirstTry tests that no wait happens on success
func TestDoSucceedsFirstTry(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	err := p.Do(context.Background(), func(int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

// TestDoRecovers tests success after transient failures
func TestDoRecovers(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	var attempts []int
	err := p.Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return errors.New("write: broken pipe")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

// TestDoExhausted tests three failures with 1s, 2s, 4s backoff
func TestDoExhausted(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	sendErr := errors.New("write: connection reset")
	calls := 0
	err := p.Do(context.Background(), func(int) error {
		calls++
		return sendErr
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.True(t, errors.Is(err, sendErr))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

// TestDoPermanent tests that permanent errors stop retries
func TestDoPermanent(t *testing.T) {
	rec := &recordingSleep{}
	p := DefaultPolicy()
	p.Sleep = rec.sleep

	calls := 0
	err := p.Do(context.Background(), func(int) error {
		calls++
		return Permanent(errors.New("connection closed"))
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.False(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

// TestDoContextCancelled tests that cancellation interrupts backoff
func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := p.Do(ctx, func(int) error {
		calls++
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

// TestDoRealSleep tests the default timer-based sleep with short delays
func TestDoRealSleep(t *testing.T) {
	p := Policy{Attempts: 2, BaseDelay: 10 * time.Millisecond}

	start := time.Now()
	err := p.Do(context.Background(), func(int) error { return errors.New("fail") })

	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

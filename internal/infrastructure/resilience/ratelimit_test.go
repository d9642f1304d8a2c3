package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_RateLimiter_SpacesCalls(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var slept []time.Duration
	l := NewRateLimiterWithClock(
		200*time.Millisecond,
		func() time.Time { return now },
		func(d time.Duration) { slept = append(slept, d); now = now.Add(d) },
	)

	// First call never waits.
	l.Wait()
	require.Len(t, slept, 0)

	// Immediate second call waits the full delay.
	l.Wait()
	require.Equal(t, []time.Duration{200 * time.Millisecond}, slept)

	// A call after a partial gap only waits the remainder.
	now = now.Add(150 * time.Millisecond)
	l.Wait()
	require.Equal(t, []time.Duration{200 * time.Millisecond, 50 * time.Millisecond}, slept)
}

func Test_RateLimiter_NoWaitAfterLongGap(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	slept := 0
	l := NewRateLimiterWithClock(
		200*time.Millisecond,
		func() time.Time { return now },
		func(time.Duration) { slept++ },
	)

	l.Wait()
	now = now.Add(time.Second)
	l.Wait()
	require.Equal(t, 0, slept)
}

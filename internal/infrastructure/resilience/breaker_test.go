package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meanrev-backend/internal/domain"
)

var errUpstream = errors.New("upstream down")

func Test_Breaker_OpensAtThreshold(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreakerWithClock(3, time.Minute, func() time.Time { return now })

	fail := func() error { return errUpstream }

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Call(fail), errUpstream)
		require.Equal(t, BreakerClosed, cb.State())
	}

	// Third consecutive failure trips it.
	require.ErrorIs(t, cb.Call(fail), errUpstream)
	require.Equal(t, BreakerOpen, cb.State())

	// While open, calls are rejected without invoking the function.
	invoked := false
	err := cb.Call(func() error { invoked = true; return nil })
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.False(t, invoked)
}

func Test_Breaker_SuccessResetsFailureCount(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreakerWithClock(3, time.Minute, func() time.Time { return now })

	fail := func() error { return errUpstream }
	ok := func() error { return nil }

	require.Error(t, cb.Call(fail))
	require.Error(t, cb.Call(fail))
	require.NoError(t, cb.Call(ok))

	// The streak restarts: two more failures stay closed.
	require.Error(t, cb.Call(fail))
	require.Error(t, cb.Call(fail))
	require.Equal(t, BreakerClosed, cb.State())
}

func Test_Breaker_RecoveryTrialClosesOnSuccess(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreakerWithClock(1, time.Minute, func() time.Time { return now })

	require.Error(t, cb.Call(func() error { return errUpstream }))
	require.Equal(t, BreakerOpen, cb.State())

	// Still inside the window.
	now = now.Add(30 * time.Second)
	require.ErrorIs(t, cb.Call(func() error { return nil }), domain.ErrCircuitOpen)

	// Window elapsed: one trial goes through and closes the breaker.
	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	require.Equal(t, BreakerClosed, cb.State())
}

func Test_Breaker_RecoveryTrialReopensOnFailure(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreakerWithClock(1, time.Minute, func() time.Time { return now })

	require.Error(t, cb.Call(func() error { return errUpstream }))
	require.Equal(t, BreakerOpen, cb.State())

	// A failed trial reopens immediately and restarts the window.
	now = now.Add(61 * time.Second)
	require.ErrorIs(t, cb.Call(func() error { return errUpstream }), errUpstream)
	require.Equal(t, BreakerOpen, cb.State())

	now = now.Add(30 * time.Second)
	require.ErrorIs(t, cb.Call(func() error { return nil }), domain.ErrCircuitOpen)
}

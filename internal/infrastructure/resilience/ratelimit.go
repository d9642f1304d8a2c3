package resilience

import (
	"sync"
	"time"
)

// RateLimiter spaces calls to the upstream provider by a minimum
// delay. It is a process-wide singleton shared across all users: the
// provider's limits are global, not per-user. A single timestamp
// guarded by a mutex is all the state there is.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter returns a limiter enforcing minDelay between calls.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		minDelay: minDelay,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// NewRateLimiterWithClock injects a clock for tests.
func NewRateLimiterWithClock(minDelay time.Duration, now func() time.Time, sleep func(time.Duration)) *RateLimiter {
	return &RateLimiter{minDelay: minDelay, now: now, sleep: sleep}
}

// Wait blocks until at least minDelay has passed since the previous
// call, then stamps the call time. Callers holding the limiter's turn
// serialize through the mutex.
func (l *RateLimiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastCall.IsZero() {
		elapsed := l.now().Sub(l.lastCall)
		if wait := l.minDelay - elapsed; wait > 0 {
			l.sleep(wait)
		}
	}
	l.lastCall = l.now()
}

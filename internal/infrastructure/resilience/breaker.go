package resilience

import (
	"sync"
	"time"

	"meanrev-backend/internal/domain"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker halts calls to a failing upstream for a cooldown
// period. Process-wide singleton per dependency, shared across users.
//
// It wraps the outer boundary of the retry loop: the wrapped function
// is expected to do its own in-call retries, and the breaker observes
// only the final outcome of that sequence.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            BreakerState
	failureCount     int
	openedAt         time.Time
	failureThreshold int
	recoveryTimeout  time.Duration

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker that opens after
// failureThreshold consecutive failures and allows one trial call
// after recoveryTimeout.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// NewCircuitBreakerWithClock injects a clock for tests.
func NewCircuitBreakerWithClock(failureThreshold int, recoveryTimeout time.Duration, now func() time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(failureThreshold, recoveryTimeout)
	cb.now = now
	return cb
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call runs fn through the breaker. While OPEN and inside the recovery
// window it rejects immediately with ErrCircuitOpen without invoking
// fn. Once the window elapses exactly one trial call goes through
// (HALF_OPEN); its outcome decides whether the breaker closes or
// reopens. Concurrent callers during the trial are rejected.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.recoveryTimeout {
			cb.mu.Unlock()
			return domain.ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
	case BreakerHalfOpen:
		// A trial is already in flight.
		cb.mu.Unlock()
		return domain.ErrCircuitOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

// onSuccess closes the breaker and resets the failure counter.
// Caller holds the mutex.
func (cb *CircuitBreaker) onSuccess() {
	cb.state = BreakerClosed
	cb.failureCount = 0
}

// onFailure records one exhausted call. A failed HALF_OPEN trial
// reopens immediately; in CLOSED, reaching the threshold opens.
// Caller holds the mutex.
func (cb *CircuitBreaker) onFailure() {
	if cb.state == BreakerHalfOpen {
		cb.state = BreakerOpen
		cb.openedAt = cb.now()
		return
	}
	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.state = BreakerOpen
		cb.openedAt = cb.now()
	}
}

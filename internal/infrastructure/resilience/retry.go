package resilience

import (
	"context"
	"math/rand"
	"time"

	"meanrev-backend/internal/domain"
)

// RetryPolicy runs a call with jittered exponential backoff. It sits
// inside the circuit breaker: the breaker sees only the final outcome
// after retries are exhausted or the call succeeds.
type RetryPolicy struct {
	MaxRetries int           // additional attempts after the first call
	BaseDelay  time.Duration // first backoff step
	MaxDelay   time.Duration // backoff cap
	Retryable  func(error) bool

	sleep func(time.Duration)
}

// DefaultRetryPolicy mirrors the provider client's shipping defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Retryable:  domain.IsTransient,
		sleep:      time.Sleep,
	}
}

// Do runs fn, retrying retryable failures with exponential backoff
// plus up to 100ms jitter. Once an attempt is dispatched it is allowed
// to complete; only the scheduling of further attempts observes ctx.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	if p.Retryable == nil {
		p.Retryable = domain.IsTransient
	}

	backoff := p.BaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !p.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		if backoff > p.MaxDelay {
			backoff = p.MaxDelay
		}
		p.sleep(backoff + time.Duration(rand.Intn(100))*time.Millisecond)
		backoff *= 2
	}
}

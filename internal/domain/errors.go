package domain

import "errors"

// Failure taxonomy. Transient classes are retried with backoff inside
// the resilient fetch client; terminal classes surface immediately.
var (
	ErrDataUnavailable     = errors.New("market data unavailable")
	ErrCircuitOpen         = errors.New("circuit open: upstream degraded")
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrPortfolioFull       = errors.New("portfolio capacity exhausted")
	ErrDuplicateOrder      = errors.New("duplicate open order for symbol")
	ErrBrokerRejected      = errors.New("order rejected by broker")
	ErrValidation          = errors.New("validation failed")
)

// IsRetryable classifies an order failure: insufficient funds and
// transient provider errors qualify for the retry sweep, broker
// rejections and validation errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBrokerRejected) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateOrder) || errors.Is(err, ErrPortfolioFull) {
		return false
	}
	return errors.Is(err, ErrInsufficientCapital) ||
		errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrCircuitOpen) ||
		IsTransient(err)
}

// IsTransient classifies provider-side failures worth an in-call
// retry with backoff. Unknown errors are treated as transient so a
// flaky upstream gets the benefit of the retry loop; the circuit
// breaker bounds the damage.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBrokerRejected) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}

package marketdata

import (
	"context"
	"time"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/metrics"
	"meanrev-backend/internal/infrastructure/resilience"
)

// ResilientClient wraps an IndicatorProvider with the shared rate
// limiter, retry-with-backoff, and circuit breaker. Layering, outside
// in: breaker -> retry -> rate limit -> provider call. The breaker
// observes only the final outcome of each retry sequence; while open,
// the inner retry logic never runs.
type ResilientClient struct {
	inner   domain.IndicatorProvider
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
}

// NewResilientClient composes the resilience layer around inner.
// Limiter and breaker are process-wide singletons owned by the caller.
func NewResilientClient(
	inner domain.IndicatorProvider,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retry resilience.RetryPolicy,
) *ResilientClient {
	return &ResilientClient{inner: inner, limiter: limiter, breaker: breaker, retry: retry}
}

// BreakerState exposes the breaker for health reporting.
func (c *ResilientClient) BreakerState() resilience.BreakerState {
	return c.breaker.State()
}

// GetSnapshot fetches the latest indicator snapshot through the
// resilience layer.
func (c *ResilientClient) GetSnapshot(ctx context.Context, symbol string) (*domain.IndicatorSnapshot, error) {
	var snap *domain.IndicatorSnapshot
	err := c.breaker.Call(func() error {
		return c.retry.Do(ctx, func() error {
			c.limiter.Wait()
			s, err := c.inner.GetSnapshot(ctx, symbol)
			if err != nil {
				return err
			}
			snap = s
			return nil
		})
	})
	metrics.SetBreakerState(string(c.breaker.State()))
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetDailyCandles fetches daily bars through the resilience layer.
func (c *ResilientClient) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	var candles []domain.Candle
	err := c.breaker.Call(func() error {
		return c.retry.Do(ctx, func() error {
			c.limiter.Wait()
			ks, err := c.inner.GetDailyCandles(ctx, symbol, start, end)
			if err != nil {
				return err
			}
			candles = ks
			return nil
		})
	})
	metrics.SetBreakerState(string(c.breaker.State()))
	if err != nil {
		return nil, err
	}
	return candles, nil
}

// compile-time check
var _ domain.IndicatorProvider = (*ResilientClient)(nil)

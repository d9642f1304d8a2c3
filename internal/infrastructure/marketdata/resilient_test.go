package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/resilience"
)

type stubProvider struct {
	snap  *domain.IndicatorSnapshot
	err   error
	calls int
}

func (p *stubProvider) GetSnapshot(ctx context.Context, symbol string) (*domain.IndicatorSnapshot, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.snap, nil
}

func (p *stubProvider) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []domain.Candle{}, nil
}

// No retries and a generous limiter keep the layering test instant.
func newTestResilientClient(inner domain.IndicatorProvider, breaker *resilience.CircuitBreaker) *ResilientClient {
	return NewResilientClient(
		inner,
		resilience.NewRateLimiter(0),
		breaker,
		resilience.RetryPolicy{MaxRetries: 0, Retryable: domain.IsTransient},
	)
}

func Test_ResilientClient_PassesThroughOnSuccess(t *testing.T) {
	inner := &stubProvider{snap: &domain.IndicatorSnapshot{Symbol: "ACME", RSI: 42}}
	client := newTestResilientClient(inner, resilience.NewCircuitBreaker(2, time.Minute))

	snap, err := client.GetSnapshot(context.Background(), "ACME")
	require.NoError(t, err)
	require.Equal(t, 42.0, snap.RSI)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, resilience.BreakerClosed, client.BreakerState())
}

func Test_ResilientClient_BreakerShieldsProvider(t *testing.T) {
	inner := &stubProvider{err: domain.ErrDataUnavailable}
	client := newTestResilientClient(inner, resilience.NewCircuitBreaker(2, time.Minute))

	_, err := client.GetSnapshot(context.Background(), "ACME")
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	_, err = client.GetSnapshot(context.Background(), "ACME")
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	require.Equal(t, resilience.BreakerOpen, client.BreakerState())

	// Open breaker: rejected before reaching the provider.
	callsBefore := inner.calls
	_, err = client.GetSnapshot(context.Background(), "ACME")
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.Equal(t, callsBefore, inner.calls)
}

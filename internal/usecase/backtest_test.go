package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meanrev-backend/internal/domain"
)

func dailyCandles(start time.Time, closes []float64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{Time: start.AddDate(0, 0, i), Close: c}
	}
	return candles
}

// Short periods keep the replay hand-checkable.
func shortBacktestConfig() BacktestConfig {
	cfg := DefaultBacktestConfig()
	cfg.RSIPeriod = 2
	cfg.TrendPeriod = 3
	return cfg
}

func Test_Backtest_Validation(t *testing.T) {
	svc := NewBacktestService(&fakeProvider{})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	_, err := svc.RunBacktest(context.Background(), "", start, end, DefaultBacktestConfig())
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RunBacktest(context.Background(), "ACME", end, start, DefaultBacktestConfig())
	require.ErrorIs(t, err, domain.ErrValidation)

	// Not enough history to warm the trend filter.
	provider := &fakeProvider{candles: dailyCandles(start, []float64{100, 101})}
	svc = NewBacktestService(provider)
	_, err = svc.RunBacktest(context.Background(), "ACME", start, end, shortBacktestConfig())
	require.ErrorIs(t, err, domain.ErrValidation)
}

func Test_Backtest_ProviderErrorPropagates(t *testing.T) {
	svc := NewBacktestService(&fakeProvider{err: domain.ErrDataUnavailable})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.RunBacktest(context.Background(), "ACME", start, start.AddDate(0, 1, 0), DefaultBacktestConfig())
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
}

// Rising warmup, one oversold dip, recovery past the 5% target:
// exactly one round trip, closed at a profit.
func Test_Backtest_EntryAndTargetExit(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 101, 102, 103, 95, 100, 101}
	provider := &fakeProvider{candles: dailyCandles(start, closes)}
	svc := NewBacktestService(provider)

	result, err := svc.RunBacktest(context.Background(), "ACME", start, start.AddDate(0, 0, len(closes)), shortBacktestConfig())
	require.NoError(t, err)

	require.Equal(t, 4, result.DaysReplayed)
	require.Equal(t, 1, result.TotalTrades)
	require.Equal(t, 1, result.TotalEntries)
	// floor(10000/95) = 105 shares, exited at 100.
	require.InDelta(t, 525.0, result.TotalPnL, 0.01)
	require.Equal(t, 100.0, result.WinRate)
}

// A dip that keeps falling pyramids a second band and is force-closed
// on the final bar at a loss.
func Test_Backtest_PyramidAndEndOfPeriodClose(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 101, 102, 103, 95, 94, 93}
	provider := &fakeProvider{candles: dailyCandles(start, closes)}
	svc := NewBacktestService(provider)

	result, err := svc.RunBacktest(context.Background(), "ACME", start, start.AddDate(0, 0, len(closes)), shortBacktestConfig())
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	require.Equal(t, 2, result.TotalEntries)
	require.Less(t, result.TotalPnL, 0.0)
	require.Equal(t, 0.0, result.WinRate)
}

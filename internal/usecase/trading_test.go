package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/repository"
)

type fakeProvider struct {
	snap    *domain.IndicatorSnapshot
	candles []domain.Candle
	err     error
}

func (p *fakeProvider) GetSnapshot(ctx context.Context, symbol string) (*domain.IndicatorSnapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.snap, nil
}

func (p *fakeProvider) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]domain.Candle, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.candles, nil
}

func newTestTradingService(provider domain.IndicatorProvider, broker domain.BrokerExecutor) (*TradingService, *PositionLedgerService, *OrderLifecycleService) {
	ledger := NewPositionLedgerService(repository.NewInMemoryPositionRepository())
	config := domain.DefaultTradingConfig("u1")
	orders := NewOrderLifecycleService(
		repository.NewInMemoryOrderRepository(),
		ledger,
		broker,
		NewTradingCalendar(),
		nil,
		config,
	)
	svc := NewTradingService(provider, ledger, orders, broker, nil, config)
	svc.now = func() time.Time { return mondayMorning }
	return svc, ledger, orders
}

func Test_Trading_InitialEntry(t *testing.T) {
	provider := &fakeProvider{snap: snapAt(25, 110, 100)}
	svc, ledger, _ := newTestTradingService(provider, &fakeBroker{})

	action, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, "entry:initial", action)

	pos, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.True(t, pos.IsOpen())
	require.Equal(t, 110.0, pos.AvgPrice)
	// floor(10000 / 110) shares
	require.Equal(t, 90.0, pos.Quantity)
	require.True(t, pos.Signal.Fired(LevelModerate))
}

func Test_Trading_PyramidEntry(t *testing.T) {
	provider := &fakeProvider{snap: snapAt(25, 110, 100)}
	svc, ledger, _ := newTestTradingService(provider, &fakeBroker{})

	_, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)

	// Same band again: nothing fires.
	provider.snap = snapAt(24, 108, 100)
	action, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Contains(t, action, "none:")

	// Deeper band triggers a pyramid.
	provider.snap = snapAt(17, 104, 100)
	action, err = svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, "entry:pyramid", action)

	pos, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, 1, pos.ReentryCount)
	require.True(t, pos.Signal.Fired(LevelDeep))
}

// A target exit and a fresh oversold signal on the same tick: the exit
// settles first, then the flat symbol takes a new initial entry with a
// clean signal state.
func Test_Trading_ExitThenFreshEntrySameTick(t *testing.T) {
	provider := &fakeProvider{snap: snapAt(25, 100, 90)}
	svc, ledger, _ := newTestTradingService(provider, &fakeBroker{})

	_, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)

	// Close 110 is past the 5% target from avg 100, and RSI 18 is a
	// fresh signal.
	provider.snap = snapAt(18, 110, 90)
	action, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, "entry:initial", action)

	// Old position closed at a profit.
	history := ledger.History("u1", time.Time{})
	require.Len(t, history, 1)
	require.Equal(t, "target", history[0].ExitReason)
	require.Equal(t, 1000.0, *history[0].RealizedPnL) // 100 shares * 10

	// New position opened at the exit-day price with a fresh state:
	// only the admitting band is consumed.
	pos, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, 110.0, pos.InitialEntryPrice)
	require.Equal(t, 0, pos.ReentryCount)
	require.True(t, pos.Signal.Fired(LevelModerate))
	require.False(t, pos.Signal.Fired(LevelDeep))
}

func Test_Trading_StopLossExit(t *testing.T) {
	provider := &fakeProvider{snap: snapAt(25, 100, 90)}
	svc, ledger, _ := newTestTradingService(provider, &fakeBroker{})

	_, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)

	// 8% below avg and RSI not oversold enough to re-enter counter-trend.
	provider.snap = snapAt(22, 92, 95)
	action, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, "exit:stop_loss", action)

	history := ledger.History("u1", time.Time{})
	require.Len(t, history, 1)
	require.Equal(t, "stop_loss", history[0].ExitReason)
}

func Test_Trading_EntryFailureLeavesRetryableOrder(t *testing.T) {
	provider := &fakeProvider{snap: snapAt(25, 110, 100)}
	broker := &fakeBroker{err: domain.ErrDataUnavailable}
	svc, ledger, orders := newTestTradingService(provider, broker)

	action, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.NoError(t, err)
	require.Equal(t, "entry_failed", action)

	// Ledger untouched; order parked FAILED and retryable.
	pos, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.False(t, pos.IsOpen())

	retriable := orders.GetRetriable("u1", mondayMorning.Add(time.Hour))
	require.Len(t, retriable, 1)
	require.Equal(t, domain.SideBuy, retriable[0].Side)
	require.Equal(t, 30, retriable[0].SignalLevel)

	// Once the broker recovers the sweep opens the position.
	broker.err = nil
	res := svc.SweepRetries(context.Background(), "u1", mondayMorning.Add(time.Hour))
	require.Equal(t, 1, res.Placed)

	pos, err = ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.True(t, pos.IsOpen())
}

func Test_Trading_FetchErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: domain.ErrCircuitOpen}
	svc, _, _ := newTestTradingService(provider, &fakeBroker{})

	_, err := svc.EvaluateAndAct(context.Background(), "u1", "ACME")
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
}

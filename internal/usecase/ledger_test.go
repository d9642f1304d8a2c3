package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/repository"
)

func newTestLedger() *PositionLedgerService {
	return NewPositionLedgerService(repository.NewInMemoryPositionRepository())
}

func Test_Ledger_OpenAndDuplicate(t *testing.T) {
	ledger := newTestLedger()
	at := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)

	pos, err := ledger.Open("u1", "ACME", 100, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)
	require.Equal(t, 100.0, pos.AvgPrice)
	require.Equal(t, 100.0, pos.InitialEntryPrice)
	require.True(t, pos.IsOpen())

	_, err = ledger.Open("u1", "ACME", 95, 10, "initial", domain.NewSignalState(), at)
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)

	// A different symbol or user is unaffected.
	_, err = ledger.Open("u1", "GLOBEX", 50, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)
	_, err = ledger.Open("u2", "ACME", 100, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)

	require.Equal(t, 2, ledger.OpenPositionCount("u1"))
}

func Test_Ledger_ReentryReweightsAverage(t *testing.T) {
	ledger := newTestLedger()
	at := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)

	pos, err := ledger.Open("u1", "ACME", 100, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)

	// 10 @ 100 plus 10 @ 90 -> avg 95.
	require.NoError(t, ledger.AddReentry(pos, 90, 10, 20, 18.5, at.AddDate(0, 0, 1)))
	require.Equal(t, 95.0, pos.AvgPrice)
	require.Equal(t, 20.0, pos.Quantity)
	require.Equal(t, 90.0, pos.LastReentryPrice)
	require.Equal(t, 1, pos.ReentryCount)
	require.Len(t, pos.Reentries, 1)
	require.Equal(t, 20, pos.Reentries[0].Level)

	// Initial entry price never moves.
	require.Equal(t, 100.0, pos.InitialEntryPrice)

	// 20 @ 95 plus 10 @ 80 -> avg 90.
	require.NoError(t, ledger.AddReentry(pos, 80, 10, 10, 8.0, at.AddDate(0, 0, 2)))
	require.Equal(t, 90.0, pos.AvgPrice)
	require.Equal(t, 30.0, pos.Quantity)
	require.Equal(t, 100.0, pos.InitialEntryPrice)
}

func Test_Ledger_ReduceOrClose(t *testing.T) {
	ledger := newTestLedger()
	at := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)

	pos, err := ledger.Open("u1", "ACME", 100, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)

	// Partial exit: position stays open, P&L realized on the slice.
	pnl, err := ledger.ReduceOrClose(pos, 4, 110, "target", at.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Equal(t, 40.0, pnl)
	require.True(t, pos.IsOpen())
	require.Equal(t, 6.0, pos.Quantity)

	// Full exit closes and stamps the exit fields.
	closedAt := at.AddDate(0, 0, 6)
	pnl, err = ledger.ReduceOrClose(pos, 6, 105, "target", closedAt)
	require.NoError(t, err)
	require.Equal(t, 30.0, pnl)
	require.False(t, pos.IsOpen())
	require.Equal(t, "target", pos.ExitReason)
	require.NotNil(t, pos.ExitPrice)
	require.Equal(t, 105.0, *pos.ExitPrice)
	require.NotNil(t, pos.RealizedPnL)
	require.Equal(t, 70.0, *pos.RealizedPnL)

	// Exits on a closed position are rejected.
	_, err = ledger.ReduceOrClose(pos, 1, 105, "target", closedAt)
	require.ErrorIs(t, err, domain.ErrValidation)

	// And it shows up in history.
	history := ledger.History("u1", time.Time{})
	require.Len(t, history, 1)
	require.Equal(t, 0, ledger.OpenPositionCount("u1"))
}

func Test_Ledger_ExitQuantityClamped(t *testing.T) {
	ledger := newTestLedger()
	at := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)

	pos, err := ledger.Open("u1", "ACME", 100, 10, "initial", domain.NewSignalState(), at)
	require.NoError(t, err)

	// Asking for more than held exits exactly what is held.
	pnl, err := ledger.ReduceOrClose(pos, 15, 92, "stop_loss", at.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, -80.0, pnl)
	require.False(t, pos.IsOpen())
}

func Test_Ledger_SignalStateRidesOnPosition(t *testing.T) {
	ledger := newTestLedger()
	at := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)

	state := domain.NewSignalState()
	state.FirstEntryMade = true
	state.MarkFired(30)

	pos, err := ledger.Open("u1", "ACME", 100, 10, "initial", state, at)
	require.NoError(t, err)

	state.MarkFired(20)
	require.NoError(t, ledger.SaveSignal(pos, state))

	reloaded, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.True(t, reloaded.Signal.Fired(30))
	require.True(t, reloaded.Signal.Fired(20))

	// Flat symbol reads back as nil position, i.e. zero state.
	_, err = ledger.ReduceOrClose(pos, 10, 110, "target", at.AddDate(0, 0, 1))
	require.NoError(t, err)
	flat, err := ledger.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.False(t, flat.IsOpen())
}

package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/indicators"
	"meanrev-backend/internal/repository"
)

// BacktestConfig parameterizes one replay run.
type BacktestConfig struct {
	RSIPeriod       int     `json:"rsiPeriod"`
	TrendPeriod     int     `json:"trendPeriod"`
	MaxPositions    int     `json:"maxPositions"`
	TradeAmount     float64 `json:"tradeAmount"`
	TargetPercent   float64 `json:"targetPercent"`
	StopLossPercent float64 `json:"stopLossPercent"`
	MaxHoldingDays  int     `json:"maxHoldingDays"`
}

// DefaultBacktestConfig mirrors the live strategy defaults.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		RSIPeriod:       14,
		TrendPeriod:     200,
		MaxPositions:    5,
		TradeAmount:     10000,
		TargetPercent:   5.0,
		StopLossPercent: 8.0,
		MaxHoldingDays:  0,
	}
}

// BacktestResult summarizes one replay run.
type BacktestResult struct {
	Symbol       string    `json:"symbol"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DaysReplayed int       `json:"daysReplayed"`
	TotalTrades  int       `json:"totalTrades"` // closed round trips
	TotalEntries int       `json:"totalEntries"`
	TotalPnL     float64   `json:"totalPnl"`
	WinRate      float64   `json:"winRate"`
	AvgPnL       float64   `json:"avgPnl"`
}

// BacktestService replays the entry/pyramiding strategy over
// historical daily bars. Strictly single-threaded and deterministic:
// one day at a time, fills at the bar close, no broker interaction.
// An unexpected per-day error aborts the run.
type BacktestService struct {
	provider  domain.IndicatorProvider
	evaluator *EntrySignalEvaluator
}

func NewBacktestService(provider domain.IndicatorProvider) *BacktestService {
	return &BacktestService{
		provider:  provider,
		evaluator: NewEntrySignalEvaluator(),
	}
}

const backtestUser = "backtest"

// RunBacktest fetches candles once, derives RSI and trend EMA series,
// and replays the decision logic day by day against a fresh in-memory
// ledger.
func (s *BacktestService) RunBacktest(ctx context.Context, symbol string, start, end time.Time, cfg BacktestConfig) (*BacktestResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", domain.ErrValidation)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s not before end %s", domain.ErrValidation, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if cfg.RSIPeriod <= 0 || cfg.TrendPeriod <= 0 {
		return nil, fmt.Errorf("%w: indicator periods must be positive", domain.ErrValidation)
	}

	// Fetch extra history ahead of start so indicators are warm on day one.
	warmupStart := start.AddDate(0, 0, -2*cfg.TrendPeriod)
	candles, err := s.provider.GetDailyCandles(ctx, symbol, warmupStart, end)
	if err != nil {
		return nil, err
	}
	if len(candles) < cfg.TrendPeriod+1 {
		return nil, fmt.Errorf("%w: need at least %d candles, have %d", domain.ErrValidation, cfg.TrendPeriod+1, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	rsi := indicators.CalculateRSI(closes, cfg.RSIPeriod)
	trend := indicators.CalculateEMA(closes, cfg.TrendPeriod)

	ledger := NewPositionLedgerService(repository.NewInMemoryPositionRepository())
	result := &BacktestResult{Symbol: symbol, Start: start, End: end}

	for i := cfg.TrendPeriod; i < len(candles); i++ {
		day := candles[i].Time
		if day.Before(start) {
			continue
		}
		result.DaysReplayed++

		snap := &domain.IndicatorSnapshot{
			Symbol:         symbol,
			Close:          closes[i],
			RSI:            rsi[i],
			TrendReference: trend[i],
			Time:           day,
		}

		if err := s.replayDay(ledger, snap, cfg, i == len(candles)-1); err != nil {
			// Fail fast: a deterministic replay must not paper over errors.
			return nil, fmt.Errorf("backtest %s day %s: %w", symbol, day.Format("2006-01-02"), err)
		}
	}

	s.collectStats(ledger, result)
	log.Printf("Backtest complete: %s | trades=%d entries=%d pnl=%.2f win=%.1f%%",
		symbol, result.TotalTrades, result.TotalEntries, result.TotalPnL, result.WinRate)
	return result, nil
}

// replayDay processes one bar: reset rule, then exits, then entries.
func (s *BacktestService) replayDay(ledger *PositionLedgerService, snap *domain.IndicatorSnapshot, cfg BacktestConfig, lastDay bool) error {
	pos, err := ledger.GetOpen(backtestUser, snap.Symbol)
	if err != nil {
		return err
	}

	state := domain.NewSignalState()
	if pos.IsOpen() {
		if pos.Signal != nil {
			state = pos.Signal
		}
		state.FirstEntryMade = true
	}

	s.evaluator.UpdateState(state, snap.RSI)

	if pos.IsOpen() {
		if reason := backtestExitReason(pos, snap, cfg, lastDay); reason != "" {
			if _, err := ledger.ReduceOrClose(pos, pos.Quantity, snap.Close, reason, snap.Time); err != nil {
				return err
			}
			// Flat now; a same-day signal is a fresh initial entry.
			pos = nil
			state = domain.NewSignalState()
			s.evaluator.UpdateState(state, snap.RSI)
		}
	}

	// The final bar only settles exits; a position opened there could
	// never be closed inside the window.
	if lastDay {
		return nil
	}

	openCount := ledger.OpenPositionCount(backtestUser)
	decision := s.evaluator.Evaluate(state, snap, openCount, cfg.MaxPositions)
	if pos.IsOpen() {
		if err := ledger.SaveSignal(pos, state); err != nil {
			return err
		}
	}
	if !decision.Enter {
		return nil
	}

	qty := math.Floor(cfg.TradeAmount / snap.Close)
	if qty < 1 {
		return nil
	}

	if pos.IsOpen() {
		return ledger.AddReentry(pos, snap.Close, qty, decision.Level, snap.RSI, snap.Time)
	}
	_, err = ledger.Open(backtestUser, snap.Symbol, snap.Close, qty, decision.Reason, state, snap.Time)
	return err
}

func backtestExitReason(pos *domain.Position, snap *domain.IndicatorSnapshot, cfg BacktestConfig, lastDay bool) string {
	if snap.Close >= pos.AvgPrice*(1+cfg.TargetPercent/100) {
		return "target"
	}
	if snap.Close <= pos.AvgPrice*(1-cfg.StopLossPercent/100) {
		return "stop_loss"
	}
	if cfg.MaxHoldingDays > 0 && snap.Time.Sub(pos.OpenedAt) >= time.Duration(cfg.MaxHoldingDays)*24*time.Hour {
		return "max_holding"
	}
	if lastDay {
		return "end_of_period"
	}
	return ""
}

func (s *BacktestService) collectStats(ledger *PositionLedgerService, result *BacktestResult) {
	history := ledger.History(backtestUser, time.Time{})
	wins := 0
	for _, p := range history {
		result.TotalTrades++
		result.TotalEntries += 1 + p.ReentryCount
		if p.RealizedPnL != nil {
			result.TotalPnL += *p.RealizedPnL
			if *p.RealizedPnL > 0 {
				wins++
			}
		}
	}
	if result.TotalTrades > 0 {
		result.WinRate = math.Round(float64(wins)/float64(result.TotalTrades)*10000) / 100
		result.AvgPnL = math.Round(result.TotalPnL/float64(result.TotalTrades)*100) / 100
	}
}

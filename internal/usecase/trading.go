package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/metrics"
)

// TradingService is the live path: it turns indicator snapshots into
// ledger and order effects for one (user,symbol) at a time.
//
// Processing order inside a tick is fixed: signal-state reset first,
// then exit evaluation, then entry evaluation. Exits settle before
// entries so a symbol that closes and signals on the same tick is
// treated as a fresh initial entry, not pyramiding.
type TradingService struct {
	fetcher   domain.IndicatorProvider
	evaluator *EntrySignalEvaluator
	ledger    *PositionLedgerService
	orders    *OrderLifecycleService
	broker    domain.BrokerExecutor
	notifier  domain.Notifier
	config    *domain.TradingConfig

	// ConfidenceFn supplies the external model confidence for the
	// priority queue; nil means no boost.
	ConfidenceFn func(symbol string, snap *domain.IndicatorSnapshot) float64

	now func() time.Time
}

func NewTradingService(
	fetcher domain.IndicatorProvider,
	ledger *PositionLedgerService,
	orders *OrderLifecycleService,
	broker domain.BrokerExecutor,
	notifier domain.Notifier,
	config *domain.TradingConfig,
) *TradingService {
	return &TradingService{
		fetcher:   fetcher,
		evaluator: NewEntrySignalEvaluator(),
		ledger:    ledger,
		orders:    orders,
		broker:    broker,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
	}
}

// EvaluateAndAct processes one tick for (user,symbol) and reports the
// action taken. Errors from one symbol never affect others; the
// scheduler logs and moves on.
func (s *TradingService) EvaluateAndAct(ctx context.Context, userID, symbol string) (string, error) {
	snap, err := s.fetcher.GetSnapshot(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", symbol, err)
	}

	s.ledger.Lock(userID, symbol)
	defer s.ledger.Unlock(userID, symbol)

	pos, err := s.ledger.GetOpen(userID, symbol)
	if err != nil {
		return "", err
	}

	state := domain.NewSignalState()
	if pos.IsOpen() {
		if pos.Signal != nil {
			state = pos.Signal
		}
		state.FirstEntryMade = true
	}

	// Reset rule runs before exit and entry evaluation on every tick.
	s.evaluator.UpdateState(state, snap.RSI)

	now := s.now()
	exitAction := ""
	if pos.IsOpen() {
		if reason := s.shouldExit(pos, snap, now); reason != "" {
			action, err := s.executeExit(ctx, pos, snap, reason, now)
			if err != nil {
				return action, err
			}
			exitAction = action
			// Re-read: a settled exit leaves the symbol flat and
			// eligible for a fresh initial entry this same tick.
			pos, _ = s.ledger.GetOpen(userID, symbol)
			if !pos.IsOpen() {
				state = domain.NewSignalState()
				s.evaluator.UpdateState(state, snap.RSI)
			}
		}
	}

	decision := s.evaluator.Evaluate(state, snap, s.ledger.OpenPositionCount(userID), s.config.MaxPositions)
	if pos.IsOpen() {
		if err := s.ledger.SaveSignal(pos, state); err != nil {
			log.Printf("Error saving signal state for %s/%s: %v", userID, symbol, err)
		}
	}
	if !decision.Enter {
		metrics.EntryDecisions.WithLabelValues("skip").Inc()
		if exitAction != "" {
			return exitAction, nil
		}
		return "none: " + decision.Reason, nil
	}

	return s.executeEntry(ctx, userID, symbol, pos, state, snap, decision, now)
}

// shouldExit applies target, stop, and holding-period exits against
// the weighted average price.
func (s *TradingService) shouldExit(pos *domain.Position, snap *domain.IndicatorSnapshot, now time.Time) string {
	if snap.Close >= pos.AvgPrice*(1+s.config.TargetPercent/100) {
		return "target"
	}
	if snap.Close <= pos.AvgPrice*(1-s.config.StopLossPercent/100) {
		return "stop_loss"
	}
	if s.config.MaxHoldingDays > 0 && now.Sub(pos.OpenedAt) >= time.Duration(s.config.MaxHoldingDays)*24*time.Hour {
		return "max_holding"
	}
	return ""
}

func (s *TradingService) executeExit(ctx context.Context, pos *domain.Position, snap *domain.IndicatorSnapshot, reason string, now time.Time) (string, error) {
	order, err := s.orders.Create(pos.UserID, pos.Symbol, domain.SideSell, pos.Quantity, snap.Close, reason, 0, snap.RSI, now)
	if err != nil {
		return "exit_blocked", err
	}

	brokerID, err := s.broker.Place(ctx, pos.Symbol, domain.SideSell, pos.Quantity, snap.Close)
	if err != nil {
		retryable := domain.IsRetryable(err)
		if markErr := s.orders.MarkFailed(order, err.Error(), retryable, now); markErr != nil {
			log.Printf("Error marking exit order %s failed: %v", order.ID, markErr)
		}
		metrics.Orders.WithLabelValues(string(domain.SideSell), "failed").Inc()
		return "exit_failed", nil
	}

	if err := s.orders.MarkExecuted(order, snap.Close, pos.Quantity, brokerID, now); err != nil {
		return "exit_failed", err
	}

	pnl, err := s.ledger.ReduceOrClose(pos, pos.Quantity, snap.Close, reason, now)
	if err != nil {
		return "exit_failed", err
	}
	s.orders.CloseForSymbol(pos.UserID, pos.Symbol, now)

	metrics.Orders.WithLabelValues(string(domain.SideSell), "filled").Inc()
	metrics.Exits.WithLabelValues(reason).Inc()
	metrics.RealizedPnL.Add(pnl)

	log.Printf("✓ Exit %s: %s | P/L: %.2f | Reason: %s", pos.Symbol, pos.ID, pnl, reason)
	if s.notifier != nil {
		s.notifier.Notify(
			fmt.Sprintf("Closed %s", pos.Symbol),
			fmt.Sprintf("Exit @ %.2f | P/L %.2f | %s", snap.Close, pnl, reason),
			map[string]string{"symbol": pos.Symbol, "reason": reason},
		)
	}
	return "exit:" + reason, nil
}

func (s *TradingService) executeEntry(
	ctx context.Context,
	userID, symbol string,
	pos *domain.Position,
	state *domain.SignalState,
	snap *domain.IndicatorSnapshot,
	decision EntryDecision,
	now time.Time,
) (string, error) {
	qty := math.Floor(s.config.TradeAmount / snap.Close)
	if qty < 1 {
		return "entry_blocked", fmt.Errorf("%w: trade amount %.2f below price %.2f", domain.ErrInsufficientCapital, s.config.TradeAmount, snap.Close)
	}

	order, err := s.orders.Create(userID, symbol, domain.SideBuy, qty, snap.Close, decision.Reason, decision.Level, snap.RSI, now)
	if err != nil {
		return "entry_blocked", err
	}
	order.CombinedScore = 100 - snap.RSI // deeper oversold jumps the queue
	if s.ConfidenceFn != nil {
		order.Confidence = s.ConfidenceFn(symbol, snap)
	}

	kind := "initial"
	if pos.IsOpen() {
		kind = "pyramid"
	}
	metrics.EntryDecisions.WithLabelValues(kind).Inc()

	brokerID, err := s.broker.Place(ctx, symbol, domain.SideBuy, qty, snap.Close)
	if err != nil {
		retryable := domain.IsRetryable(err)
		if markErr := s.orders.MarkFailed(order, err.Error(), retryable, now); markErr != nil {
			log.Printf("Error marking entry order %s failed: %v", order.ID, markErr)
		}
		metrics.Orders.WithLabelValues(string(domain.SideBuy), "failed").Inc()
		log.Printf("Entry order failed for %s: %v (retryable=%v)", symbol, err, retryable)
		return "entry_failed", nil
	}

	if err := s.orders.MarkExecuted(order, snap.Close, qty, brokerID, now); err != nil {
		return "entry_failed", err
	}

	if pos.IsOpen() {
		if err := s.ledger.AddReentry(pos, snap.Close, qty, decision.Level, snap.RSI, now); err != nil {
			return "entry_failed", err
		}
		if err := s.ledger.SaveSignal(pos, state); err != nil {
			log.Printf("Error saving signal state for %s/%s: %v", userID, symbol, err)
		}
	} else {
		if _, err := s.ledger.Open(userID, symbol, snap.Close, qty, decision.Reason, state, now); err != nil {
			return "entry_failed", err
		}
	}

	metrics.Orders.WithLabelValues(string(domain.SideBuy), "filled").Inc()
	log.Printf("🎯 Entry %s: %s | level %d | rsi %.1f | qty %.0f @ %.2f", kind, symbol, decision.Level, snap.RSI, qty, snap.Close)
	if s.notifier != nil {
		s.notifier.Notify(
			fmt.Sprintf("Entered %s (%s)", symbol, kind),
			fmt.Sprintf("Level %d | RSI %.1f | %.0f @ %.2f", decision.Level, snap.RSI, qty, snap.Close),
			map[string]string{"symbol": symbol, "kind": kind},
		)
	}
	return "entry:" + kind, nil
}

// SweepRetries re-places retryable failed orders for the user.
func (s *TradingService) SweepRetries(ctx context.Context, userID string, now time.Time) SweepResult {
	return s.orders.SweepRetries(ctx, userID, now)
}

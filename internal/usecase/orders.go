package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/metrics"
)

// OrderLifecycleService drives orders through the lifecycle state
// machine and runs the retry sweep. Orders are soft-closed via status,
// never deleted.
type OrderLifecycleService struct {
	repo     domain.OrderRepository
	ledger   *PositionLedgerService
	broker   domain.BrokerExecutor
	calendar *TradingCalendar
	notifier domain.Notifier
	config   *domain.TradingConfig
}

func NewOrderLifecycleService(
	repo domain.OrderRepository,
	ledger *PositionLedgerService,
	broker domain.BrokerExecutor,
	calendar *TradingCalendar,
	notifier domain.Notifier,
	config *domain.TradingConfig,
) *OrderLifecycleService {
	return &OrderLifecycleService{
		repo:     repo,
		ledger:   ledger,
		broker:   broker,
		calendar: calendar,
		notifier: notifier,
		config:   config,
	}
}

// SweepResult summarizes one retry sweep.
type SweepResult struct {
	Retried int `json:"retried"`
	Placed  int `json:"placed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Create registers a PENDING order. Rejected without creating a row
// when a duplicate open order exists for the symbol, or (for entries)
// when portfolio capacity is exhausted. Duplicate checking makes
// repeated scheduling of the same signal idempotent.
func (s *OrderLifecycleService) Create(userID, symbol string, side domain.OrderSide, qty, price float64, reason string, level int, rsi float64, at time.Time) (*domain.Order, error) {
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: order requires positive price and quantity", domain.ErrValidation)
	}

	if open := s.repo.GetOpenBySymbol(userID, symbol); len(open) > 0 {
		for _, o := range open {
			if o.Side == side {
				return nil, fmt.Errorf("%w: %s %s order %s still open", domain.ErrDuplicateOrder, symbol, side, o.ID)
			}
		}
	}

	if side == domain.SideBuy && s.ledger.OpenPositionCount(userID) >= s.config.MaxPositions {
		// Pyramiding onto an already-open symbol does not add a position.
		if pos, _ := s.ledger.GetOpen(userID, symbol); !pos.IsOpen() {
			return nil, domain.ErrPortfolioFull
		}
	}

	o := &domain.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		Status:      domain.OrderPending,
		Reason:      reason,
		SignalLevel: level,
		SignalRSI:   rsi,
		CreatedAt:   at,
	}
	if err := s.repo.Create(o); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkFailed moves an order to FAILED. FirstFailedAt is set exactly
// once; RetryCount grows by one for every failed attempt, initial
// placement included. The failure detail goes to LastError; Reason
// keeps the order's intent for the eventual fill.
func (s *OrderLifecycleService) MarkFailed(o *domain.Order, errMsg string, retryable bool, at time.Time) error {
	if o.Status == domain.OrderCancelled || o.Status == domain.OrderClosed {
		return fmt.Errorf("%w: cannot fail %s order %s", domain.ErrValidation, o.Status, o.ID)
	}

	o.Status = domain.OrderFailed
	o.LastError = errMsg
	o.Retryable = retryable
	if o.FirstFailedAt == nil {
		t := at
		o.FirstFailedAt = &t
	}
	o.RetryCount++
	t := at
	o.LastRetryAttempt = &t

	return s.repo.Update(o)
}

// MarkExecuted moves an order to ONGOING and records the fill.
func (s *OrderLifecycleService) MarkExecuted(o *domain.Order, price, qty float64, brokerOrderID int64, at time.Time) error {
	if o.Status != domain.OrderPending && o.Status != domain.OrderFailed {
		return fmt.Errorf("%w: cannot execute %s order %s", domain.ErrValidation, o.Status, o.ID)
	}

	o.Status = domain.OrderOngoing
	o.ExecutionPrice = &price
	o.ExecutionQty = &qty
	o.BrokerOrderID = &brokerOrderID
	t := at
	o.FilledAt = &t

	return s.repo.Update(o)
}

// Cancel drops a FAILED order. Terminal; no transition out.
func (s *OrderLifecycleService) Cancel(o *domain.Order, reason string) error {
	if o.Status != domain.OrderFailed && o.Status != domain.OrderPending {
		return fmt.Errorf("%w: cannot cancel %s order %s", domain.ErrValidation, o.Status, o.ID)
	}
	o.Status = domain.OrderCancelled
	o.LastError = reason
	return s.repo.Update(o)
}

// CloseForSymbol settles all ONGOING orders for a symbol once the
// position has fully exited.
func (s *OrderLifecycleService) CloseForSymbol(userID, symbol string, at time.Time) {
	for _, o := range s.repo.GetOpenBySymbol(userID, symbol) {
		if o.Status != domain.OrderOngoing {
			continue
		}
		o.Status = domain.OrderClosed
		if err := s.repo.Update(o); err != nil {
			log.Printf("Error closing order %s: %v", o.ID, err)
		}
	}
}

// GetRetriable returns FAILED retryable orders still inside their
// expiry boundary (next trading-session close after the first
// failure), sorted by priority. Orders past the boundary are
// transitioned to CANCELLED with reason "expired" as a side effect and
// excluded from the result.
func (s *OrderLifecycleService) GetRetriable(userID string, now time.Time) []*domain.Order {
	retriable := make([]*domain.Order, 0)
	for _, o := range s.repo.GetFailed(userID) {
		if !o.Retryable {
			continue
		}
		if o.FirstFailedAt != nil && !now.Before(s.calendar.NextSessionClose(*o.FirstFailedAt)) {
			if err := s.Cancel(o, "expired"); err != nil {
				log.Printf("Error expiring order %s: %v", o.ID, err)
			}
			metrics.RetrySweeps.WithLabelValues("expired").Inc()
			continue
		}
		retriable = append(retriable, o)
	}
	return prioritize(retriable)
}

// SweepRetries re-places every retriable order in priority order and
// applies ledger effects for fills. Returns per-order outcome counts.
func (s *OrderLifecycleService) SweepRetries(ctx context.Context, userID string, now time.Time) SweepResult {
	var res SweepResult
	for _, o := range s.GetRetriable(userID, now) {
		res.Retried++
		metrics.RetrySweeps.WithLabelValues("retried").Inc()

		s.ledger.Lock(userID, o.Symbol)
		brokerID, err := s.broker.Place(ctx, o.Symbol, o.Side, o.Quantity, o.Price)
		if err != nil {
			if markErr := s.MarkFailed(o, err.Error(), domain.IsRetryable(err), now); markErr != nil {
				log.Printf("Error marking order %s failed: %v", o.ID, markErr)
			}
			s.ledger.Unlock(userID, o.Symbol)
			res.Failed++
			metrics.RetrySweeps.WithLabelValues("failed").Inc()
			continue
		}

		if err := s.MarkExecuted(o, o.Price, o.Quantity, brokerID, now); err != nil {
			log.Printf("Error marking order %s executed: %v", o.ID, err)
			s.ledger.Unlock(userID, o.Symbol)
			res.Skipped++
			metrics.RetrySweeps.WithLabelValues("skipped").Inc()
			continue
		}
		if err := s.applyFill(o, now); err != nil {
			log.Printf("Error applying fill for order %s: %v", o.ID, err)
		}
		s.ledger.Unlock(userID, o.Symbol)

		res.Placed++
		metrics.RetrySweeps.WithLabelValues("placed").Inc()
		metrics.Orders.WithLabelValues(string(o.Side), "retried_ok").Inc()

		if s.notifier != nil {
			s.notifier.Notify(
				fmt.Sprintf("Retry filled: %s", o.Symbol),
				fmt.Sprintf("%s %.2f @ %.2f after %d attempts", o.Side, o.Quantity, o.Price, o.RetryCount),
				map[string]string{"orderId": o.ID, "symbol": o.Symbol, "status": string(o.Status)},
			)
		}
	}
	return res
}

// applyFill propagates a successful retry fill into the ledger.
// Caller holds the (user,symbol) lock.
func (s *OrderLifecycleService) applyFill(o *domain.Order, at time.Time) error {
	pos, err := s.ledger.GetOpen(o.UserID, o.Symbol)
	if err != nil {
		return err
	}

	switch o.Side {
	case domain.SideBuy:
		if pos.IsOpen() {
			return s.ledger.AddReentry(pos, o.Price, o.Quantity, o.SignalLevel, o.SignalRSI, at)
		}
		signal := domain.NewSignalState()
		signal.FirstEntryMade = true
		signal.MarkFired(o.SignalLevel)
		_, err := s.ledger.Open(o.UserID, o.Symbol, o.Price, o.Quantity, o.Reason, signal, at)
		return err
	case domain.SideSell:
		if !pos.IsOpen() {
			return nil
		}
		pnl, err := s.ledger.ReduceOrClose(pos, o.Quantity, o.Price, o.Reason, at)
		if err != nil {
			return err
		}
		metrics.RealizedPnL.Add(pnl)
		if !pos.IsOpen() {
			s.CloseForSymbol(o.UserID, o.Symbol, at)
		}
	}
	return nil
}

// Confidence boost bands for the execution/retry queue.
func confidenceBoost(confidence float64) float64 {
	switch {
	case confidence >= 0.70:
		return 20
	case confidence >= 0.60:
		return 10
	case confidence >= 0.50:
		return 5
	}
	return 0
}

// finalScore is base priority plus the confidence boost; when no base
// score was assigned the combined score stands in.
func finalScore(o *domain.Order) float64 {
	base := o.CombinedScore
	if o.BasePriorityScore != nil {
		base = *o.BasePriorityScore
	}
	return base + confidenceBoost(o.Confidence)
}

// prioritize sorts candidates by final score, highest first. The sort
// is stable so equal scores keep their original order.
func prioritize(orders []*domain.Order) []*domain.Order {
	sort.SliceStable(orders, func(i, j int) bool {
		return finalScore(orders[i]) > finalScore(orders[j])
	})
	return orders
}

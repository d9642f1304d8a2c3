package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"meanrev-backend/internal/domain"
)

// PositionLedgerService owns the position ledger for every
// (user,symbol). Mutations to one ledger are serialized through a
// per-key mutex: concurrent reentry and exit evaluation on the same
// symbol must not interleave.
type PositionLedgerService struct {
	repo domain.PositionRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPositionLedgerService(repo domain.PositionRepository) *PositionLedgerService {
	return &PositionLedgerService{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

// keyLock returns the single-writer mutex for one (user,symbol).
func (s *PositionLedgerService) keyLock(userID, symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + symbol
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Lock serializes all ledger work for one (user,symbol). Callers hold
// it across a full tick (exit evaluation then entry evaluation).
func (s *PositionLedgerService) Lock(userID, symbol string) {
	s.keyLock(userID, symbol).Lock()
}

// Unlock releases the (user,symbol) serialization lock.
func (s *PositionLedgerService) Unlock(userID, symbol string) {
	s.keyLock(userID, symbol).Unlock()
}

// GetOpen returns the open ledger for (user,symbol), or nil when flat.
func (s *PositionLedgerService) GetOpen(userID, symbol string) (*domain.Position, error) {
	return s.repo.GetOpen(userID, symbol)
}

// OpenPositionCount returns how many ledgers the user has open.
func (s *PositionLedgerService) OpenPositionCount(userID string) int {
	return len(s.repo.GetOpenByUser(userID))
}

// Open creates a fresh ledger. Fails if one is already open for the
// (user,symbol). AvgPrice and InitialEntryPrice both start at price;
// InitialEntryPrice never changes afterwards.
func (s *PositionLedgerService) Open(userID, symbol string, price, qty float64, reason string, signal *domain.SignalState, at time.Time) (*domain.Position, error) {
	if qty <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: open requires positive price and quantity", domain.ErrValidation)
	}

	existing, err := s.repo.GetOpen(userID, symbol)
	if err != nil {
		return nil, err
	}
	if existing.IsOpen() {
		return nil, fmt.Errorf("%w: ledger already open for %s/%s", domain.ErrDuplicateOrder, userID, symbol)
	}

	p := &domain.Position{
		ID:                uuid.NewString(),
		UserID:            userID,
		Symbol:            symbol,
		Quantity:          qty,
		AvgPrice:          price,
		InitialEntryPrice: price,
		Reentries:         make([]domain.Reentry, 0),
		Signal:            signal,
		EntryReason:       reason,
		OpenedAt:          at,
	}
	if p.Signal == nil {
		p.Signal = domain.NewSignalState()
	}

	if err := s.repo.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddReentry pyramids onto an open ledger, re-weighting the average
// price. InitialEntryPrice is untouched.
func (s *PositionLedgerService) AddReentry(p *domain.Position, price, qty float64, level int, indicatorValue float64, at time.Time) error {
	if !p.IsOpen() {
		return fmt.Errorf("%w: reentry on closed position %s", domain.ErrValidation, p.ID)
	}
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("%w: reentry requires positive price and quantity", domain.ErrValidation)
	}

	newAvg := (p.AvgPrice*p.Quantity + price*qty) / (p.Quantity + qty)
	p.AvgPrice = newAvg
	p.Quantity += qty
	p.LastReentryPrice = price
	p.ReentryCount++
	p.Reentries = append(p.Reentries, domain.Reentry{
		Quantity:       qty,
		Level:          level,
		IndicatorValue: indicatorValue,
		Price:          price,
		Timestamp:      at,
	})

	return s.repo.Update(p)
}

// ReduceOrClose exits quantity from the ledger and returns the
// realized P&L for the exited slice. Exiting the full quantity (or
// more) closes the ledger.
func (s *PositionLedgerService) ReduceOrClose(p *domain.Position, exitQty, exitPrice float64, reason string, at time.Time) (float64, error) {
	if !p.IsOpen() {
		return 0, fmt.Errorf("%w: exit on closed position %s", domain.ErrValidation, p.ID)
	}
	if exitQty <= 0 {
		return 0, fmt.Errorf("%w: exit requires positive quantity", domain.ErrValidation)
	}

	if exitQty > p.Quantity {
		exitQty = p.Quantity
	}
	pnl := (exitPrice - p.AvgPrice) * exitQty

	if exitQty >= p.Quantity {
		p.Quantity = 0
		p.ClosedAt = &at
		p.ExitReason = reason
		p.ExitPrice = &exitPrice
		if p.RealizedPnL == nil {
			p.RealizedPnL = new(float64)
		}
		*p.RealizedPnL += pnl
	} else {
		p.Quantity -= exitQty
		if p.RealizedPnL == nil {
			p.RealizedPnL = new(float64)
		}
		*p.RealizedPnL += pnl
	}

	if err := s.repo.Update(p); err != nil {
		return 0, err
	}
	return pnl, nil
}

// SaveSignal persists the mutated signal state riding on the position.
func (s *PositionLedgerService) SaveSignal(p *domain.Position, signal *domain.SignalState) error {
	p.Signal = signal
	return s.repo.Update(p)
}

// History returns closed ledgers since fromTime.
func (s *PositionLedgerService) History(userID string, fromTime time.Time) []*domain.Position {
	return s.repo.GetHistory(userID, fromTime)
}

// OpenByUser returns all open ledgers for a user.
func (s *PositionLedgerService) OpenByUser(userID string) []*domain.Position {
	return s.repo.GetOpenByUser(userID)
}

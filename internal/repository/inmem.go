package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"meanrev-backend/internal/domain"
)

// InMemoryPositionRepository stores positions in memory. Used by the
// backtest driver (deterministic, no DB) and by tests.
type InMemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position // id -> position
}

func NewInMemoryPositionRepository() *InMemoryPositionRepository {
	return &InMemoryPositionRepository{
		positions: make(map[string]*domain.Position),
	}
}

func (r *InMemoryPositionRepository) Create(p *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.positions[p.ID]; exists {
		return fmt.Errorf("position with ID %s already exists", p.ID)
	}
	for _, existing := range r.positions {
		if existing.UserID == p.UserID && existing.Symbol == p.Symbol && existing.ClosedAt == nil {
			return fmt.Errorf("open position already exists for %s/%s", p.UserID, p.Symbol)
		}
	}
	r.positions[p.ID] = p
	return nil
}

func (r *InMemoryPositionRepository) GetOpen(userID, symbol string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.positions {
		if p.UserID == userID && p.Symbol == symbol && p.ClosedAt == nil {
			return p, nil
		}
	}
	return nil, nil
}

func (r *InMemoryPositionRepository) GetOpenByUser(userID string) []*domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	open := make([]*domain.Position, 0)
	for _, p := range r.positions {
		if p.UserID == userID && p.ClosedAt == nil {
			open = append(open, p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].OpenedAt.Before(open[j].OpenedAt) })
	return open
}

func (r *InMemoryPositionRepository) Update(p *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.positions[p.ID]; !exists {
		return fmt.Errorf("position with ID %s not found", p.ID)
	}
	r.positions[p.ID] = p
	return nil
}

func (r *InMemoryPositionRepository) GetHistory(userID string, fromTime time.Time) []*domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]*domain.Position, 0)
	for _, p := range r.positions {
		if p.UserID == userID && p.ClosedAt != nil && !p.ClosedAt.Before(fromTime) {
			history = append(history, p)
		}
	}
	sort.Slice(history, func(i, j int) bool { return history[i].ClosedAt.Before(*history[j].ClosedAt) })
	return history
}

// InMemoryOrderRepository stores orders in memory for tests and the
// backtest driver.
type InMemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    []string // creation order, for stable listings
}

func NewInMemoryOrderRepository() *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *InMemoryOrderRepository) Create(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", o.ID)
	}
	r.orders[o.ID] = o
	r.seq = append(r.seq, o.ID)
	return nil
}

func (r *InMemoryOrderRepository) GetByID(id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, exists := r.orders[id]
	if !exists {
		return nil, fmt.Errorf("order with ID %s not found", id)
	}
	return o, nil
}

func (r *InMemoryOrderRepository) Update(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; !exists {
		return fmt.Errorf("order with ID %s not found", o.ID)
	}
	r.orders[o.ID] = o
	return nil
}

func (r *InMemoryOrderRepository) GetOpenBySymbol(userID, symbol string) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	open := make([]*domain.Order, 0)
	for _, id := range r.seq {
		o := r.orders[id]
		if o.UserID == userID && o.Symbol == symbol && o.IsOpen() {
			open = append(open, o)
		}
	}
	return open
}

func (r *InMemoryOrderRepository) GetFailed(userID string) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	failed := make([]*domain.Order, 0)
	for _, id := range r.seq {
		o := r.orders[id]
		if o.UserID == userID && o.Status == domain.OrderFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r *InMemoryOrderRepository) GetByUser(userID string) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, id := range r.seq {
		o := r.orders[id]
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}

// compile-time checks
var (
	_ domain.PositionRepository = (*InMemoryPositionRepository)(nil)
	_ domain.OrderRepository    = (*InMemoryOrderRepository)(nil)
)

package domain

import "time"

// Reentry records one pyramiding add-on to an open position.
type Reentry struct {
	Quantity       float64   `json:"quantity"`
	Level          int       `json:"level"` // RSI band that admitted the add-on
	IndicatorValue float64   `json:"indicatorValue"`
	Price          float64   `json:"price"`
	Timestamp      time.Time `json:"timestamp"`
}

// Position is the ledger for one (user,symbol); at most one open at a
// time. AvgPrice is always the quantity-weighted mean over the initial
// entry plus all reentries. InitialEntryPrice never changes after
// creation.
type Position struct {
	ID                string       `json:"id"`
	UserID            string       `json:"userId"`
	Symbol            string       `json:"symbol"`
	Quantity          float64      `json:"quantity"`
	AvgPrice          float64      `json:"avgPrice"`
	InitialEntryPrice float64      `json:"initialEntryPrice"`
	LastReentryPrice  float64      `json:"lastReentryPrice"`
	ReentryCount      int          `json:"reentryCount"`
	Reentries         []Reentry    `json:"reentries"` // ordered, oldest first
	Signal            *SignalState `json:"signal"`
	EntryReason       string       `json:"entryReason"`
	ExitReason        string       `json:"exitReason,omitempty"`
	ExitPrice         *float64     `json:"exitPrice,omitempty"`
	RealizedPnL       *float64     `json:"realizedPnl,omitempty"`
	OpenedAt          time.Time    `json:"openedAt"`
	ClosedAt          *time.Time   `json:"closedAt,omitempty"`
}

// IsOpen reports whether the position still holds quantity.
func (p *Position) IsOpen() bool {
	return p != nil && p.ClosedAt == nil
}

// PositionRepository defines position ledger persistence.
type PositionRepository interface {
	Create(p *Position) error
	GetOpen(userID, symbol string) (*Position, error) // nil, nil when flat
	GetOpenByUser(userID string) []*Position
	Update(p *Position) error
	GetHistory(userID string, fromTime time.Time) []*Position
}

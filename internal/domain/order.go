package domain

import "time"

// OrderStatus is the order lifecycle state.
//
//	PENDING  -> ONGOING   (placement succeeded)
//	PENDING  -> FAILED    (placement error)
//	FAILED   -> ONGOING   (successful retry)
//	FAILED   -> CANCELLED (expired or manually dropped)
//	ONGOING  -> CLOSED    (position exit settled)
//
// CANCELLED and CLOSED are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderOngoing   OrderStatus = "ONGOING"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderClosed    OrderStatus = "CLOSED"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Order is a broker order row. Orders are never deleted, only
// soft-closed via status.
type Order struct {
	ID       string      `json:"id"`
	UserID   string      `json:"userId"`
	Symbol   string      `json:"symbol"`
	Side     OrderSide   `json:"side"`
	Quantity float64     `json:"quantity"`
	Price    float64     `json:"price"`
	Status   OrderStatus `json:"status"`

	// Reason is the order's intent ("target", "stop_loss", the entry
	// signal description) and survives failures, so a retried fill
	// settles the ledger with the original cause. LastError carries the
	// most recent failure or cancellation detail instead.
	Reason    string `json:"reason"`
	LastError string `json:"lastError,omitempty"`

	// Retry bookkeeping. FirstFailedAt is set on the first failure and
	// never overwritten; RetryCount grows by one per attempt.
	Retryable        bool       `json:"retryable"`
	RetryCount       int        `json:"retryCount"`
	FirstFailedAt    *time.Time `json:"firstFailedAt,omitempty"`
	LastRetryAttempt *time.Time `json:"lastRetryAttempt,omitempty"`

	// Execution fields, set when the broker fills the order.
	ExecutionPrice *float64   `json:"executionPrice,omitempty"`
	ExecutionQty   *float64   `json:"executionQty,omitempty"`
	FilledAt       *time.Time `json:"filledAt,omitempty"`
	BrokerOrderID  *int64     `json:"brokerOrderId,omitempty"`

	// Priority inputs for the execution/retry queue.
	BasePriorityScore *float64 `json:"basePriorityScore,omitempty"`
	Confidence        float64  `json:"confidence"`
	CombinedScore     float64  `json:"combinedScore"` // fallback when BasePriorityScore is absent

	// Signal context captured at creation so a retried fill can apply
	// the right ledger effect. Level 0 means no band (exit orders).
	SignalLevel int     `json:"signalLevel"`
	SignalRSI   float64 `json:"signalRsi"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsOpen reports whether the order still occupies the symbol: a
// pending, live, or still-retryable failed order blocks duplicates.
func (o *Order) IsOpen() bool {
	switch o.Status {
	case OrderPending, OrderOngoing:
		return true
	case OrderFailed:
		return o.Retryable
	}
	return false
}

// OrderRepository defines order persistence.
type OrderRepository interface {
	Create(o *Order) error
	GetByID(id string) (*Order, error)
	Update(o *Order) error
	GetOpenBySymbol(userID, symbol string) []*Order
	GetFailed(userID string) []*Order
	GetByUser(userID string) []*Order
}

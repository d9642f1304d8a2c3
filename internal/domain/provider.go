package domain

import (
	"context"
	"time"
)

// IndicatorProvider supplies per-symbol market data. Live evaluation
// uses GetSnapshot; the backtest driver fetches candles once and
// derives its own snapshots.
type IndicatorProvider interface {
	GetSnapshot(ctx context.Context, symbol string) (*IndicatorSnapshot, error)
	GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error)
}

// BrokerExecutor places orders with the execution venue.
type BrokerExecutor interface {
	Place(ctx context.Context, symbol string, side OrderSide, qty, price float64) (brokerOrderID int64, err error)
}

// Notifier delivers fire-and-forget status alerts. Failures must never
// affect order or ledger state.
type Notifier interface {
	Notify(title, body string, data map[string]string)
}

// TradingConfig carries the strategy parameters for one user.
type TradingConfig struct {
	UserID          string  `json:"userId"`
	MaxPositions    int     `json:"maxPositions"`    // open position cap across symbols
	TradeAmount     float64 `json:"tradeAmount"`     // capital per entry, quote currency
	TargetPercent   float64 `json:"targetPercent"`   // profit target from avg price
	StopLossPercent float64 `json:"stopLossPercent"` // stop distance from avg price
	MaxHoldingDays  int     `json:"maxHoldingDays"`  // end-of-period exit; 0 disables
}

// DefaultTradingConfig mirrors the strategy's shipping defaults.
func DefaultTradingConfig(userID string) *TradingConfig {
	return &TradingConfig{
		UserID:          userID,
		MaxPositions:    5,
		TradeAmount:     10000,
		TargetPercent:   5.0,
		StopLossPercent: 8.0,
		MaxHoldingDays:  0,
	}
}

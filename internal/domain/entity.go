package domain

import "time"

// IndicatorSnapshot is one symbol's indicator view for a single tick.
// Values are precomputed by the data provider (or by the backtest
// driver from raw candles); the core treats them as opaque numbers.
type IndicatorSnapshot struct {
	Symbol         string    `json:"symbol"`
	Close          float64   `json:"close"`
	RSI            float64   `json:"rsi"`
	TrendReference float64   `json:"trendReference"` // long EMA, trend filter
	Time           time.Time `json:"time"`
}

// Candle represents one daily OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SignalState is the per-(user,symbol) pyramiding state machine.
// It rides on the position row and is never persisted on its own;
// a flat symbol implies the zero state.
type SignalState struct {
	FirstEntryMade bool         `json:"firstEntryMade"`
	LevelsFired    map[int]bool `json:"levelsFired"`   // RSI bands (10/20/30) consumed since last reset
	AwaitingReset  bool         `json:"awaitingReset"` // a band has fired and no reset seen yet
	AboveReset     bool         `json:"aboveReset"`    // last observed RSI was above the reset threshold
}

// NewSignalState returns the state of a flat symbol.
func NewSignalState() *SignalState {
	return &SignalState{LevelsFired: make(map[int]bool)}
}

// MarkFired consumes an RSI band until the next reset.
func (s *SignalState) MarkFired(level int) {
	if s.LevelsFired == nil {
		s.LevelsFired = make(map[int]bool)
	}
	s.LevelsFired[level] = true
	s.AwaitingReset = true
}

// Fired reports whether a band has been consumed since the last reset.
func (s *SignalState) Fired(level int) bool {
	return s.LevelsFired[level]
}

// Reset clears all consumed bands after RSI crosses back above the
// reset threshold.
func (s *SignalState) Reset() {
	s.LevelsFired = make(map[int]bool)
	s.AwaitingReset = false
}

package usecase

import (
	"fmt"

	"meanrev-backend/internal/domain"
)

// RSI bands. The trend-side initial entry uses LevelModerate; the
// counter-trend gate tightens to LevelDeep. Pyramiding walks the bands
// from most to least extreme.
const (
	LevelExtreme  = 10
	LevelDeep     = 20
	LevelModerate = 30

	// ResetThreshold clears consumed bands once RSI recovers above it.
	ResetThreshold = 30.0
)

// EntryDecision is the evaluator's verdict for one tick.
type EntryDecision struct {
	Enter  bool
	Level  int // RSI band that admitted the entry, 0 when not entering
	Reason string
}

// EntrySignalEvaluator decides whether a tick triggers an initial
// entry or a pyramiding re-entry. It mutates only the SignalState;
// ledger and order effects belong to the callers.
type EntrySignalEvaluator struct{}

func NewEntrySignalEvaluator() *EntrySignalEvaluator {
	return &EntrySignalEvaluator{}
}

// UpdateState applies the reset rule: the first observation of
// RSI above the reset threshold clears all consumed bands. Must run
// before entry evaluation on every tick, and before exit evaluation
// when exits react to same-day signals.
func (e *EntrySignalEvaluator) UpdateState(state *domain.SignalState, rsi float64) {
	if rsi > ResetThreshold {
		if !state.AboveReset {
			state.Reset()
		}
		state.AboveReset = true
		return
	}
	state.AboveReset = false
}

// Evaluate inspects one indicator snapshot.
//
// With no open position the trend gate applies: trend-side entries
// need RSI < 30, counter-trend entries need the stricter RSI < 20.
// With a position open the trend gate is not re-applied (averaging
// down); bands are checked from most to least extreme and each fires
// at most once per reset.
func (e *EntrySignalEvaluator) Evaluate(
	state *domain.SignalState,
	snap *domain.IndicatorSnapshot,
	openPositionCount int,
	maxPositions int,
) EntryDecision {
	if !state.FirstEntryMade {
		return e.evaluateInitial(state, snap, openPositionCount, maxPositions)
	}
	return e.evaluatePyramid(state, snap, openPositionCount, maxPositions)
}

func (e *EntrySignalEvaluator) evaluateInitial(
	state *domain.SignalState,
	snap *domain.IndicatorSnapshot,
	openPositionCount int,
	maxPositions int,
) EntryDecision {
	if openPositionCount >= maxPositions {
		return EntryDecision{Reason: "portfolio full"}
	}

	threshold := LevelModerate
	gate := "trend"
	if snap.Close <= snap.TrendReference {
		// Counter-trend: demand a deeper oversold reading.
		threshold = LevelDeep
		gate = "counter-trend"
	}

	if snap.RSI >= float64(threshold) {
		return EntryDecision{Reason: fmt.Sprintf("rsi %.1f above %s threshold %d", snap.RSI, gate, threshold)}
	}

	state.FirstEntryMade = true
	state.MarkFired(threshold)
	return EntryDecision{
		Enter:  true,
		Level:  threshold,
		Reason: fmt.Sprintf("initial entry (%s): rsi %.1f < %d", gate, snap.RSI, threshold),
	}
}

func (e *EntrySignalEvaluator) evaluatePyramid(
	state *domain.SignalState,
	snap *domain.IndicatorSnapshot,
	openPositionCount int,
	maxPositions int,
) EntryDecision {
	if openPositionCount >= maxPositions {
		return EntryDecision{Reason: "portfolio full"}
	}

	level := 0
	switch {
	case snap.RSI < LevelExtreme:
		level = LevelExtreme
	case snap.RSI < LevelDeep:
		level = LevelDeep
	case snap.RSI < LevelModerate:
		level = LevelModerate
	default:
		return EntryDecision{Reason: fmt.Sprintf("rsi %.1f not oversold", snap.RSI)}
	}

	if state.Fired(level) {
		return EntryDecision{Reason: fmt.Sprintf("level %d already fired since last reset", level)}
	}

	state.MarkFired(level)
	return EntryDecision{
		Enter:  true,
		Level:  level,
		Reason: fmt.Sprintf("pyramid: rsi %.1f touched level %d", snap.RSI, level),
	}
}

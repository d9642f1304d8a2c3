package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"meanrev-backend/internal/domain"
)

// LiveScheduler drives the live trading loop: every tick it walks each
// user's watchlist through EvaluateAndAct, and on a slower cadence
// sweeps retryable failed orders. Symbols for one user are processed
// sequentially so the per-symbol serialization is never contended by
// the scheduler itself; users run independently.
type LiveScheduler struct {
	trading  *TradingService
	interval time.Duration
	sweepGap time.Duration

	// Watchlists maps user IDs to the symbols they trade.
	Watchlists map[string][]string
}

func NewLiveScheduler(trading *TradingService, interval, sweepGap time.Duration) *LiveScheduler {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	if sweepGap <= 0 {
		sweepGap = 5 * time.Minute
	}
	return &LiveScheduler{
		trading:    trading,
		interval:   interval,
		sweepGap:   sweepGap,
		Watchlists: make(map[string][]string),
	}
}

// Run blocks until ctx is done. Each user gets its own goroutine.
func (s *LiveScheduler) Run(ctx context.Context) {
	for userID, symbols := range s.Watchlists {
		go s.runUser(ctx, userID, symbols)
	}
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *LiveScheduler) runUser(ctx context.Context, userID string, symbols []string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	sweeper := time.NewTicker(s.sweepGap)
	defer sweeper.Stop()

	// Initial pass before the first tick fires.
	s.processUser(ctx, userID, symbols)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processUser(ctx, userID, symbols)
		case <-sweeper.C:
			res := s.trading.SweepRetries(ctx, userID, time.Now())
			if res.Retried > 0 {
				log.Printf("Retry sweep for %s: retried=%d placed=%d failed=%d skipped=%d",
					userID, res.Retried, res.Placed, res.Failed, res.Skipped)
			}
		}
	}
}

// processUser walks the watchlist one symbol at a time. A failure on
// one symbol is logged and never stops the rest of the list.
func (s *LiveScheduler) processUser(ctx context.Context, userID string, symbols []string) {
	start := time.Now()
	acted := 0

	for _, symbol := range symbols {
		action, err := s.trading.EvaluateAndAct(ctx, userID, symbol)
		if err != nil {
			if errors.Is(err, domain.ErrCircuitOpen) {
				log.Printf("Data source circuit open, skipping rest of cycle for %s", userID)
				return
			}
			log.Printf("Error processing %s/%s: %v", userID, symbol, err)
			continue
		}
		if strings.HasPrefix(action, "entry:") || strings.HasPrefix(action, "exit:") {
			acted++
		}
	}

	log.Printf("Cycle done for %s: %d symbols, %d actions, took %v", userID, len(symbols), acted, time.Since(start))
}

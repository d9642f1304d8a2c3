// Package metrics exposes Prometheus series the trader updates during
// operation:
//
//   - trader_orders_total{side,result}      – orders placed, by outcome
//   - trader_entry_decisions_total{kind}    – entry decisions (initial|pyramid|skip)
//   - trader_exits_total{reason}            – position exits by reason
//   - trader_retry_sweeps_total{result}     – retry sweep outcomes
//   - trader_realized_pnl                   – cumulative realized P&L (gauge)
//   - trader_breaker_state{state}           – provider circuit breaker indicator
//
// Registered in init() and served by the HTTP handler in cmd/server at
// /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders placed, by side and outcome",
		},
		[]string{"side", "result"},
	)

	EntryDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_entry_decisions_total",
			Help: "Entry decisions taken",
		},
		[]string{"kind"},
	)

	Exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_exits_total",
			Help: "Position exits by reason",
		},
		[]string{"reason"},
	)

	RetrySweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_retry_sweeps_total",
			Help: "Retry sweep outcomes (retried|placed|failed|skipped|expired)",
		},
		[]string{"result"},
	)

	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_realized_pnl",
			Help: "Cumulative realized P&L",
		},
	)

	// Two labeled series flipped between 0/1/half to keep dashboards
	// simple; value 1 marks the active state.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_breaker_state",
			Help: "Provider circuit breaker state indicator",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		Orders,
		EntryDecisions,
		Exits,
		RetrySweeps,
		RealizedPnL,
		BreakerState,
	)
}

// SetBreakerState flips the labeled indicator series so exactly one
// state reads 1.
func SetBreakerState(state string) {
	for _, s := range []string{"CLOSED", "OPEN", "HALF_OPEN"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		BreakerState.WithLabelValues(s).Set(v)
	}
}

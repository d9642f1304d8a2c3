package http

import (
	"encoding/json"
	"net/http"
	"time"

	"meanrev-backend/internal/usecase"
)

// BacktestHandler exposes historical replay runs over HTTP.
type BacktestHandler struct {
	backtest *usecase.BacktestService
}

func NewBacktestHandler(backtest *usecase.BacktestService) *BacktestHandler {
	return &BacktestHandler{backtest: backtest}
}

type BacktestRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start"` // YYYY-MM-DD
	End    string `json:"end"`   // YYYY-MM-DD

	// Optional overrides; zero values fall back to defaults.
	RSIPeriod       int     `json:"rsiPeriod"`
	TrendPeriod     int     `json:"trendPeriod"`
	TradeAmount     float64 `json:"tradeAmount"`
	TargetPercent   float64 `json:"targetPercent"`
	StopLossPercent float64 `json:"stopLossPercent"`
	MaxHoldingDays  int     `json:"maxHoldingDays"`
}

// HandleRun handles POST /api/backtest
func (h *BacktestHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		http.Error(w, "Invalid start date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		http.Error(w, "Invalid end date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	cfg := usecase.DefaultBacktestConfig()
	if req.RSIPeriod > 0 {
		cfg.RSIPeriod = req.RSIPeriod
	}
	if req.TrendPeriod > 0 {
		cfg.TrendPeriod = req.TrendPeriod
	}
	if req.TradeAmount > 0 {
		cfg.TradeAmount = req.TradeAmount
	}
	if req.TargetPercent > 0 {
		cfg.TargetPercent = req.TargetPercent
	}
	if req.StopLossPercent > 0 {
		cfg.StopLossPercent = req.StopLossPercent
	}
	if req.MaxHoldingDays > 0 {
		cfg.MaxHoldingDays = req.MaxHoldingDays
	}

	result, err := h.backtest.RunBacktest(r.Context(), req.Symbol, start, end, cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

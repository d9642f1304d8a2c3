package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/usecase"
)

// TradingHandler exposes the live trading operations over HTTP.
type TradingHandler struct {
	trading *usecase.TradingService
	ledger  *usecase.PositionLedgerService
	orders  domain.OrderRepository
}

func NewTradingHandler(trading *usecase.TradingService, ledger *usecase.PositionLedgerService, orders domain.OrderRepository) *TradingHandler {
	return &TradingHandler{
		trading: trading,
		ledger:  ledger,
		orders:  orders,
	}
}

type EvaluateRequest struct {
	UserID string `json:"userId"`
	Symbol string `json:"symbol"`
}

type EvaluateResponse struct {
	Action string `json:"action"`
}

// HandleEvaluate handles POST /api/trading/evaluate
func (h *TradingHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Symbol == "" {
		http.Error(w, "userId and symbol are required", http.StatusBadRequest)
		return
	}

	action, err := h.trading.EvaluateAndAct(r.Context(), req.UserID, req.Symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(EvaluateResponse{Action: action})
}

// HandleSweep handles POST /api/trading/sweep?userId={id}
func (h *TradingHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	res := h.trading.SweepRetries(r.Context(), userID, time.Now())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// HandlePositions handles GET /api/positions?userId={id}
func (h *TradingHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	positions := h.ledger.OpenByUser(userID)
	if positions == nil {
		positions = make([]*domain.Position, 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// HandleHistory handles GET /api/positions/history?userId={id}&from={RFC3339}
func (h *TradingHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	var from time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid from timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		from = parsed
	}

	history := h.ledger.History(userID, from)
	if history == nil {
		history = make([]*domain.Position, 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

// HandleOrders handles GET /api/orders?userId={id}
func (h *TradingHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	orders := h.orders.GetByUser(userID)
	if orders == nil {
		orders = make([]*domain.Order, 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateOrder), errors.Is(err, domain.ErrPortfolioFull):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientCapital):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrBrokerRejected):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"meanrev-backend/internal/infrastructure/resilience"
)

// BreakerStater reports the data-source circuit state.
type BreakerStater interface {
	BreakerState() resilience.BreakerState
}

// HealthHandler reports liveness plus the data-source circuit state so
// operators can tell a degraded fetcher apart from a dead process.
type HealthHandler struct {
	breaker BreakerStater
	started time.Time
}

func NewHealthHandler(breaker BreakerStater) *HealthHandler {
	return &HealthHandler{
		breaker: breaker,
		started: time.Now(),
	}
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	BreakerState  string `json:"breakerState"`
}

// Handle handles GET /health
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.breaker != nil {
		resp.BreakerState = string(h.breaker.BreakerState())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

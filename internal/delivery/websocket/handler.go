package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"meanrev-backend/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler streams the caller's open positions over a websocket,
// refreshed every few seconds.
type Handler struct {
	ledger *usecase.PositionLedgerService
}

func NewHandler(ledger *usecase.PositionLedgerService) *Handler {
	return &Handler{
		ledger: ledger,
	}
}

// Handle upgrades GET /ws?userId={id} and pushes open positions until
// the client goes away.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	log.Printf("New client connected for %s", userID)

	// Send initial data immediately
	if err := conn.WriteJSON(h.ledger.OpenByUser(userID)); err != nil {
		log.Println("Write error:", err)
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.ledger.OpenByUser(userID)); err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}

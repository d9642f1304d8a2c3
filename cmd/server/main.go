package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpdelivery "meanrev-backend/internal/delivery/http"
	"meanrev-backend/internal/delivery/websocket"
	"meanrev-backend/internal/domain"
	"meanrev-backend/internal/infrastructure/broker"
	"meanrev-backend/internal/infrastructure/db"
	"meanrev-backend/internal/infrastructure/fcm"
	"meanrev-backend/internal/infrastructure/marketdata"
	"meanrev-backend/internal/infrastructure/resilience"
	"meanrev-backend/internal/repository"
	"meanrev-backend/internal/usecase"
)

func main() {
	ctx := context.Background()

	// 1. Repositories: Postgres when DATABASE_URL is set, in-memory otherwise.
	var positionRepo domain.PositionRepository
	var orderRepo domain.OrderRepository
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := db.NewPool(ctx, dbURL, db.PoolConfigFromEnv())
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("Error running migrations: %v", err)
		}
		positionRepo = repository.NewPostgresPositionRepository(pool)
		orderRepo = repository.NewPostgresOrderRepository(pool)
		log.Println("✓ Postgres storage initialized")
	} else {
		positionRepo = repository.NewInMemoryPositionRepository()
		orderRepo = repository.NewInMemoryOrderRepository()
		log.Println("Warning: DATABASE_URL not set, using in-memory storage")
	}

	// 2. Notifications
	fcmClient, err := fcm.NewClient()
	if err != nil {
		log.Printf("Error initializing FCM: %v", err)
		fcmClient = nil
	}
	tokenRepo := repository.NewTokenRepository()
	notifier := usecase.NewNotificationService(fcmClient, tokenRepo, envDuration("NOTIFY_COOLDOWN", 5*time.Minute))

	// 3. Market data with the shared resilience layer.
	limiter := resilience.NewRateLimiter(envDuration("FETCH_MIN_DELAY", 200*time.Millisecond))
	breaker := resilience.NewCircuitBreaker(5, envDuration("BREAKER_RECOVERY", 60*time.Second))
	fetcher := marketdata.NewResilientClient(
		marketdata.NewClient(os.Getenv("MARKETDATA_BASE_URL")),
		limiter,
		breaker,
		resilience.DefaultRetryPolicy(),
	)

	// 4. Broker
	brokerClient := broker.NewClient(
		os.Getenv("BROKER_API_KEY"),
		os.Getenv("BROKER_SECRET_KEY"),
		os.Getenv("BROKER_BASE_URL"),
	)

	// 5. Usecases
	userID := envString("TRADING_USER_ID", "default")
	config := domain.DefaultTradingConfig(userID)
	calendar := usecase.TradingCalendarFromEnv()

	ledger := usecase.NewPositionLedgerService(positionRepo)
	orders := usecase.NewOrderLifecycleService(orderRepo, ledger, brokerClient, calendar, notifier, config)
	trading := usecase.NewTradingService(fetcher, ledger, orders, brokerClient, notifier, config)
	backtest := usecase.NewBacktestService(fetcher)

	// 6. Live loop
	scheduler := usecase.NewLiveScheduler(
		trading,
		envDuration("SCHEDULE_INTERVAL", 1*time.Minute),
		envDuration("SWEEP_INTERVAL", 5*time.Minute),
	)
	if watchlist := envList("WATCHLIST"); len(watchlist) > 0 {
		scheduler.Watchlists[userID] = watchlist
		go scheduler.Run(ctx)
		log.Printf("✓ Scheduler running for %s with %d symbols", userID, len(watchlist))
	} else {
		log.Println("Warning: WATCHLIST not set, live loop disabled")
	}

	// 7. Delivery
	tradingHandler := httpdelivery.NewTradingHandler(trading, ledger, orderRepo)
	backtestHandler := httpdelivery.NewBacktestHandler(backtest)
	tokenHandler := httpdelivery.NewTokenHandler(tokenRepo)
	healthHandler := httpdelivery.NewHealthHandler(fetcher)
	wsHandler := websocket.NewHandler(ledger)

	http.HandleFunc("/health", healthHandler.Handle)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/ws", wsHandler.Handle)
	http.HandleFunc("/api/trading/evaluate", tradingHandler.HandleEvaluate)
	http.HandleFunc("/api/trading/sweep", tradingHandler.HandleSweep)
	http.HandleFunc("/api/positions", tradingHandler.HandlePositions)
	http.HandleFunc("/api/positions/history", tradingHandler.HandleHistory)
	http.HandleFunc("/api/orders", tradingHandler.HandleOrders)
	http.HandleFunc("/api/backtest", backtestHandler.HandleRun)
	http.HandleFunc("/api/tokens/register", tokenHandler.HandleRegisterToken)
	http.HandleFunc("/api/tokens/unregister", tokenHandler.HandleUnregisterToken)

	port := envString("PORT", "8080")
	log.Printf("Server executing on :%s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Warning: invalid %s=%q, using %v", key, v, fallback)
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/warfront/realm-engine/internal/api"
	"github.com/warfront/realm-engine/internal/broadcast"
	"github.com/warfront/realm-engine/internal/combat"
	"github.com/warfront/realm-engine/internal/config"
	"github.com/warfront/realm-engine/internal/economy"
	"github.com/warfront/realm-engine/internal/metrics"
	"github.com/warfront/realm-engine/internal/modifier"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/progression"
	"github.com/warfront/realm-engine/internal/store"
	"github.com/warfront/realm-engine/internal/turn"
)

func main() {
	cfg, err := config.ParseEnv()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Balance document ---
	var balance *config.Balance
	if cfg.BalancePath != "" {
		balance, err = config.LoadBalance(cfg.BalancePath)
		if err != nil {
			slog.Error("load balance document", "path", cfg.BalancePath, "err", err)
			os.Exit(1)
		}
		slog.Info("balance loaded", "path", cfg.BalancePath, "version", balance.Version())
	} else {
		slog.Warn("BALANCE_PATH not set, using built-in defaults")
	}
	tables, err := modifier.Load(balance)
	if err != nil {
		slog.Error("invalid modifier tables", "err", err)
		os.Exit(1)
	}
	engine := power.NewEngine(tables)

	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client
	var cleanup []func()

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("apply schema", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub and event bus ---
	wsHub := broadcast.NewWSHub()
	go wsHub.Run(ctx)

	var events broadcast.Publisher = wsHub
	if rdb != nil {
		// Every instance relays the shared channel into its own hub.
		events = broadcast.NewRedisPublisher(rdb, cfg.EventChannel)
		go broadcast.Relay(ctx, rdb, cfg.EventChannel, wsHub)
		slog.Info("event bus on Redis", "channel", cfg.EventChannel)
	}
	events = broadcast.Fanout{events, broadcast.LogPublisher{}}

	// --- Services ---
	rng, err := combat.NewRand()
	if err != nil {
		slog.Error("seed combat rng", "err", err)
		os.Exit(1)
	}
	combatSvc := combat.NewService(st, engine, progression.LoadCurve(balance), combat.LoadConfig(balance), rng,
		combat.WithPublisher(events),
		combat.WithNotifier(wsHub),
	)
	economySvc := economy.NewService(st, engine, economy.WithNotifier(wsHub))
	processor := turn.NewProcessor(st, engine, turn.LoadConfig(balance))

	// --- Tick scheduler ---
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := processor.ProcessAll(ctx); err != nil {
					slog.Warn("scheduled tick", "err", err)
				}
			}
		}
	}()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"realm-engine","balance":%q}`, tables.Version)
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	handler := api.NewHandler(st, engine, combatSvc, economySvc, processor)
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live events and notifications.
		r.Get("/ws", wsHub.HandleWS)
		handler.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("realm-engine listening", "port", cfg.Port, "tick_interval", cfg.TickInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down realm-engine...")
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("realm-engine stopped")
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"

	"github.com/prontolabs/pronto/internal/adapter/fsm"
	"github.com/prontolabs/pronto/internal/adapter/otel"
	"github.com/prontolabs/pronto/internal/adapter/payment"
	"github.com/prontolabs/pronto/internal/adapter/redis"
	"github.com/prontolabs/pronto/internal/adapter/river"
	"github.com/prontolabs/pronto/internal/adapter/sqlite"
	"github.com/prontolabs/pronto/internal/app"
	"github.com/prontolabs/pronto/internal/domain"

	handler "github.com/prontolabs/pronto/internal/adapter/http"
)

func main() {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "pronto.db")
	redisAddr := envOrDefault("REDIS_ADDR", "localhost:6379")
	jwtSecret := envOrDefault("JWT_SECRET", "dev-secret-change-me")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Telemetry ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		log.Fatalf("otel: %v", err)
	}

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	defer rdb.Close()

	snapshots := redis.NewSnapshotStore(rdb, redis.SnapshotConfigFromEnv())

	busCfg := redis.BusConfigFromEnv()
	worker := river.NewNotificationWorker(rdb, snapshots, river.StreamConfigFromEnv())

	queue, err := river.Setup(ctx, db, worker)
	if err != nil {
		log.Fatalf("river: %v", err)
	}
	notifier := river.NewPublisher(queue)

	bus := redis.NewBus(rdb, store.Events, snapshots, notifier, busCfg, logger)

	// --- Application ---
	policy := domain.DefaultPolicy()
	svc := app.NewOrderService(
		otel.NewTracingRepository(store.Orders),
		store.Sessions,
		fsm.New(policy),
		policy,
		otel.NewTracingSink(bus),
		bus,
		snapshots,
		payment.NewCashProvider(logger),
	)

	// --- Adapters (in) ---
	guard := handler.NewScopeGuard([]byte(jwtSecret))

	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("pronto", otelchi.WithChiRoutes(router)))
	router.Use(guard.Middleware)

	api := humachi.New(router, huma.DefaultConfig("pronto", "0.1.0"))
	handler.Register(api, svc)

	// --- Job queue ---
	if err := queue.Start(ctx); err != nil {
		log.Fatalf("river start: %v", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("pronto listening", "port", port)
		logger.Info("api docs", "url", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		logger.Error("river shutdown", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}

	logger.Info("stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

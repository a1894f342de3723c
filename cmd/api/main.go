// Package main is the entry point for the dispatch API server.
// Its sole responsibility is wiring dependencies together and starting the
// server. No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hoangh20/transfleet-dispatch/internal/cache"
	"github.com/hoangh20/transfleet-dispatch/internal/config"
	"github.com/hoangh20/transfleet-dispatch/internal/handler"
	"github.com/hoangh20/transfleet-dispatch/internal/ledger"
	"github.com/hoangh20/transfleet-dispatch/internal/middleware"
	"github.com/hoangh20/transfleet-dispatch/internal/repo"
	"github.com/hoangh20/transfleet-dispatch/internal/routes"
	"github.com/hoangh20/transfleet-dispatch/internal/service"
	"github.com/hoangh20/transfleet-dispatch/spec"
)

// distanceCacheTTL bounds how long a learned distance is served from Redis
// before re-reading Postgres. Entries are write-once, so a long TTL is safe.
const distanceCacheTTL = 24 * time.Hour

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// log/slog is the stdlib structured logger introduced in Go 1.21.
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately — the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Repositories -----------------------------------------------------
	tripRepo := repo.NewTripRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	combinedRepo := repo.NewCombinedRepo(pool)

	// Distances go through Redis when configured; the Postgres table stays
	// the source of truth either way.
	var distanceRepo repo.DistanceRepo = repo.NewDistanceRepo(pool)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Warn("redis unreachable, distance cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			distanceRepo = cache.NewDistanceCache(rdb, distanceRepo, distanceCacheTTL, logger)
			slog.Info("distance cache enabled", "addr", cfg.RedisAddr)
		}
	}

	// --- External collaborators -------------------------------------------
	ledgerWriter := ledger.NewHTTPWriter(cfg.LedgerBaseURL, cfg.LedgerAPIKey, nil)
	routeNames := routes.NewHTTPResolver(cfg.RoutesBaseURL, nil)

	// --- Services ---------------------------------------------------------
	tripSvc := service.NewTripService(tripRepo, eventRepo, combinedRepo, routeNames, logger)
	combineSvc := service.NewCombineService(tripRepo, combinedRepo, distanceRepo)
	combinedSvc := service.NewCombinedService(combinedRepo, tripRepo, logger)
	exportSvc := service.NewExportService(tripRepo, combinedRepo, ledgerWriter)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(1 << 20)) // 1 MiB

	srvHandler := handler.NewServer(tripSvc, combineSvc, combinedSvc, exportSvc, spec.OpenAPI)
	r.Mount("/", srvHandler.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

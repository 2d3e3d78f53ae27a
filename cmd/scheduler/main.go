// Command scheduler is the Questboard notification scheduler service.
//
// Usage:
//
//	questboard-scheduler
//	API_PORT=8080 questboard-scheduler
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

	"github.com/joho/godotenv"

	"github.com/questboard/scheduler/internal/api"
	"github.com/questboard/scheduler/internal/clock"
	"github.com/questboard/scheduler/internal/config"
	"github.com/questboard/scheduler/internal/db"
	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/listener"
	"github.com/questboard/scheduler/internal/maintenance"
	"github.com/questboard/scheduler/internal/populate"
	"github.com/questboard/scheduler/internal/publish"
	"github.com/questboard/scheduler/internal/scheduler"
	"github.com/questboard/scheduler/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Apply migrations before anything touches the schema
	logger.Info("Applying migrations...")
	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Re-render the notify trigger function with the configured horizon
	if err := pool.SetNotifyHorizon(ctx, cfg.NearHorizon); err != nil {
		logger.Error("Failed to apply notify horizon", "error", err)
		os.Exit(1)
	}

	// Connect to the event bus
	publisher, err := publish.NewRedisPublisher(ctx, cfg.RedisURL, cfg.EventStream, logger)
	if err != nil {
		logger.Error("Failed to connect to event bus", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("Event bus connected", "stream", cfg.EventStream)

	// Wire the core
	st := store.New(pool.Pool, cfg.GraceWindow)
	games := game.NewPgRepository(pool.Pool)
	populator := populate.New(st, games, clock.System{}, cfg.FallbackOffsets, cfg.DefaultDuration, logger)

	// Change-notify consumer: one dedicated LISTEN connection
	lst := listener.New(cfg.DatabaseURL, logger)
	go lst.Run(ctx)

	// The scheduler loop
	loop := scheduler.New(
		scheduler.NewPgStore(st),
		publisher,
		clock.System{},
		lst.Events(),
		scheduler.Config{
			SafetyTimeout:    cfg.SafetyTimeout,
			SmallLead:        cfg.SmallLead,
			BatchLimit:       cfg.BatchLimit,
			MaxPublishRetry:  cfg.MaxPublishRetry,
			TransientBackoff: cfg.TransientBackoff,
			MaxBackoff:       cfg.MaxBackoff,
			DBCallTimeout:    cfg.DBCallTimeout,
		},
		logger,
	)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil {
			logger.Error("Scheduler loop exited", "error", err)
		}
	}()

	// Maintenance tickers (cleanup + catch-up sweep)
	go maintenance.Start(ctx, pool.Pool, st, maintenance.DefaultConfig(), logger)

	// Admin/health HTTP surface
	router := api.NewRouter(pool, st, populator, publisher, cfg)
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting admin API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Let the loop finish its in-flight dispatch, then stop the server.
	select {
	case <-loopDone:
	case <-time.After(15 * time.Second):
		logger.Warn("Scheduler loop did not stop in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Service stopped")
}

// Command schedctl is the Questboard scheduler operator CLI.
//
// Usage:
//
//	schedctl migrate
//	schedctl rebuild --game 6d3f...c1
//	schedctl next
//	schedctl sweep
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/questboard/scheduler/internal/clock"
	"github.com/questboard/scheduler/internal/config"
	"github.com/questboard/scheduler/internal/db"
	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/maintenance"
	"github.com/questboard/scheduler/internal/populate"
	"github.com/questboard/scheduler/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "schedctl",
		Short: "Questboard scheduler operator CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(rebuildCmd())
	root.AddCommand(nextCmd())
	root.AddCommand(sweepCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}

			pool, err := db.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()
			if err := pool.SetNotifyHorizon(ctx, cfg.NearHorizon); err != nil {
				return err
			}

			logger.Info("Migrations applied", "notify_horizon", cfg.NearHorizon)
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// rebuild command
// --------------------------------------------------------------------------

func rebuildCmd() *cobra.Command {
	var gameID string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute one game's notification schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(gameID)
			if err != nil {
				return fmt.Errorf("--game must be a UUID: %w", err)
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool, cfg.GraceWindow)
				games := game.NewPgRepository(pool.Pool)
				populator := populate.New(st, games, clock.System{}, cfg.FallbackOffsets, cfg.DefaultDuration, logger)

				tx, err := pool.Begin(ctx)
				if err != nil {
					return fmt.Errorf("begin: %w", err)
				}
				defer tx.Rollback(ctx)

				if err := populator.Populate(ctx, tx, id, false); err != nil {
					return err
				}
				if err := tx.Commit(ctx); err != nil {
					return fmt.Errorf("commit: %w", err)
				}
				logger.Info("Schedule rebuilt", "game_id", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game UUID (required)")
	_ = cmd.MarkFlagRequired("game")
	return cmd
}

// --------------------------------------------------------------------------
// next command
// --------------------------------------------------------------------------

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the earliest pending schedule row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool, cfg.GraceWindow)
				row, ok, err := st.PeekNextDue(ctx)
				if err != nil {
					return err
				}
				if !ok {
					logger.Info("Schedule is empty")
					return nil
				}
				logger.Info("Next due row",
					"id", row.ID,
					"due_time", row.DueTime.UTC().Format(time.RFC3339),
					"in", time.Until(row.DueTime).Round(time.Second))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the cleanup and catch-up sweep once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				st := store.New(pool.Pool, cfg.GraceWindow)
				maintenance.Cleanup(ctx, st, time.Duration(retentionDays)*24*time.Hour, logger)
				maintenance.CatchUpSweep(ctx, pool.Pool, st, logger)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 30, "Purge sent rows older than this")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withPool handles config loading, DB connection, and context cancellation.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

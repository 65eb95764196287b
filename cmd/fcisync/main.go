// Command fcisync enriches the CAFCI fund class catalogue into a local store
// and serves it over a read-only HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/fci-sync/internal/api"
	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/config"
	"github.com/ndewijer/fci-sync/internal/database"
	"github.com/ndewijer/fci-sync/internal/logging"
	"github.com/ndewijer/fci-sync/internal/scheduler"
	"github.com/ndewijer/fci-sync/internal/service"
	"github.com/ndewijer/fci-sync/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// globalFlags override the matching environment settings when set.
type globalFlags struct {
	logLevel string
	pretty   bool
	dataDir  string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "fcisync",
		Short:        "Sync CAFCI fund classes into a local store",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "Human readable log output")
	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Directory for checkpoint, status and master artifacts")

	cmd.AddCommand(
		syncCmd(&flags),
		masterCmd(&flags),
		statusCmd(&flags),
		serveCmd(&flags),
		migrateCmd(&flags),
		versionCmd(),
	)
	return cmd
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, flags *globalFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = flags.pretty
	}
	if flags.dataDir != "" {
		cfg.Sync.DataDir = flags.dataDir
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logging.SetGlobalLogger(logger)
	return cfg, logger, nil
}

// withApp runs fn with a fully wired app and closes it afterwards.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, logger, err := setup(cmd, flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close resources")
		}
	}()

	return fn(ctx, a)
}

func syncCmd(flags *globalFlags) *cobra.Command {
	var (
		reset     bool
		breakLock bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass, resuming from the last checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if breakLock {
					if err := a.artifacts.BreakLock(); err != nil {
						return err
					}
					a.log.Warn().Msg("Removed existing sync lock")
				}
				if reset {
					if err := a.artifacts.ClearCheckpoint(); err != nil {
						return err
					}
					a.log.Info().Msg("Checkpoint cleared")
				}

				report, err := a.sync.Run(ctx)
				if report != nil {
					if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
						return werr
					}
				}
				switch {
				// An interrupted run is paused with its checkpoint saved.
				case errors.Is(err, context.Canceled):
					return nil
				case errors.Is(err, apperrors.ErrSyncInProgress):
					return fmt.Errorf("%w (use --break-lock if the previous run crashed)", err)
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Discard the checkpoint and start from the first class")
	cmd.Flags().BoolVar(&breakLock, "break-lock", false, "Remove a lock left behind by a crashed run")
	return cmd
}

func masterCmd(flags *globalFlags) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "master",
		Short: "Fetch the master fund list and save the raw envelope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if seed {
					n, err := a.master.Seed(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d fund classes\n", n)
					return nil
				}

				tasks, err := a.master.Fetch(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fetched %d fund classes into %s\n", len(tasks), a.artifacts.Dir())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Also insert the master rows into the store")
	return cmd
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the enrichment status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				status, err := a.sync.Status().Current(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var syncOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and run scheduled syncs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return serve(ctx, a, syncOnStart)
			})
		},
	}

	cmd.Flags().BoolVar(&syncOnStart, "sync-on-start", false, "Start a sync as soon as the server is up")
	return cmd
}

func serve(ctx context.Context, a *app, syncOnStart bool) error {
	router := api.NewRouter(ctx, api.Services{
		System:    a.system,
		Funds:     a.funds,
		Analytics: a.analytics,
		Sync:      a.sync,
	}, a.metrics.Handler(), a.cfg, a.log)

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sched := scheduler.New(ctx, a.log)
	job := service.NewSyncJob(a.sync)
	if a.cfg.Sync.Schedule != "" {
		if err := sched.AddJob(a.cfg.Sync.Schedule, job); err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		if syncOnStart {
			if err := sched.RunNow(job); err != nil {
				a.log.Warn().Err(err).Msg("Failed to start initial sync")
			}
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		a.log.Info().Msg("Server exited gracefully")
		return nil
	})

	return g.Wait()
}

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			res, err := migrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", res.Applied).Int64("version", res.Version).Msg("Migrations applied")
			return nil
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config) (database.MigrationResult, error) {
	if cfg.Database.Driver == database.DriverPostgres {
		return database.MigratePostgres(ctx, cfg.Database.URL)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return database.MigrationResult{}, err
	}
	defer db.Close()
	return database.MigrateSQLite(ctx, db)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fcisync %s (%s)\n", version.Version, version.Commit)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

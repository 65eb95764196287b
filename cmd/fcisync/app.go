package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/ndewijer/fci-sync/internal/artifact"
	"github.com/ndewijer/fci-sync/internal/cafci"
	"github.com/ndewijer/fci-sync/internal/config"
	"github.com/ndewijer/fci-sync/internal/database"
	"github.com/ndewijer/fci-sync/internal/events"
	"github.com/ndewijer/fci-sync/internal/metrics"
	"github.com/ndewijer/fci-sync/internal/reconcile"
	"github.com/ndewijer/fci-sync/internal/repository"
	"github.com/ndewijer/fci-sync/internal/service"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     repository.FundClassStore
	artifacts *artifact.Store
	publisher events.Publisher
	metrics   *metrics.Sync

	sync      *service.SyncService
	master    *service.MasterService
	funds     *service.FundService
	analytics *service.AnalyticsService
	system    *service.SystemService
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = p
	}

	client := cafci.NewClient(cafci.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		Origin:      cfg.Upstream.Origin,
		Referer:     cfg.Upstream.Referer,
		UserAgent:   cfg.Upstream.UserAgent,
		Timeout:     cfg.Upstream.Timeout,
		MaxAttempts: cfg.Upstream.MaxAttempts,
		BaseDelay:   cfg.Upstream.RetryBaseDelay,
		RegionID:    cfg.Upstream.RegionID,
		Status:      cfg.Upstream.Status,
	}, log)

	artifacts := artifact.NewStore(cfg.Sync.DataDir)
	m := metrics.NewSync()

	opts := service.SyncOptions{
		RequestDelay:     cfg.Sync.RequestDelay,
		RateLimitBackoff: cfg.Sync.RateLimitBackoff,
		Policy:           reconcile.Policy{StaleMonths: cfg.Sync.StaleMonths},
		CheckpointEvery:  cfg.Sync.CheckpointEvery,
		StatusEvery:      cfg.Sync.StatusEvery,
		LockStaleAfter:   cfg.Sync.LockStaleAfter,
	}

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		artifacts: artifacts,
		publisher: publisher,
		metrics:   m,
		sync:      service.NewSyncService(client, store, artifacts, publisher, m, opts, log),
		master:    service.NewMasterService(client, store, artifacts, log),
		funds:     service.NewFundService(store),
		analytics: service.NewAnalyticsService(store),
		system:    service.NewSystemService(store),
	}, nil
}

// Close releases the publisher and the store.
func (a *app) Close() error {
	return multierr.Combine(
		a.publisher.Close(),
		a.store.Close(),
	)
}

// openStore opens and migrates the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.FundClassStore, error) {
	switch cfg.Database.Driver {
	case database.DriverPostgres:
		res, err := database.MigratePostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		db, err := database.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.Database.Driver).Int64("schema_version", res.Version).Msg("Connected to database")
		return repository.NewPgFundClassRepository(db), nil

	default:
		if dir := filepath.Dir(cfg.Database.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		res, err := database.MigrateSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info().
			Str("driver", database.DriverSQLite).
			Str("path", cfg.Database.Path).
			Int64("schema_version", res.Version).
			Msg("Connected to database")
		return repository.NewFundClassRepository(db), nil
	}
}

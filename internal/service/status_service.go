package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ndewijer/fci-sync/internal/artifact"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// StatusService derives the dashboard status from storage and persists it
// as the status artifact.
type StatusService struct {
	store     repository.FundClassStore
	artifacts *artifact.Store
	group     singleflight.Group
	now       func() time.Time
	log       zerolog.Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(store repository.FundClassStore, artifacts *artifact.Store, logger zerolog.Logger) *StatusService {
	return &StatusService{
		store:     store,
		artifacts: artifacts,
		now:       time.Now,
		log:       logger.With().Str("component", "status").Logger(),
	}
}

// Compute counts rows in storage. Concurrent callers share one count, which
// is not cancelled when one of them gives up.
func (s *StatusService) Compute(ctx context.Context) (model.SyncStatus, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("count", func() (any, error) {
		total, enriched, err := s.store.CountStatus(shared)
		if err != nil {
			return nil, fmt.Errorf("failed to count status: %w", err)
		}
		return model.SyncStatus{
			TotalFunds:    total,
			EnrichedFunds: enriched,
			ProgressPct:   percent(enriched, total),
			LastUpdate:    s.now().UTC(),
		}, nil
	})

	select {
	case <-ctx.Done():
		return model.SyncStatus{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.SyncStatus{}, res.Err
		}
		return res.Val.(model.SyncStatus), nil
	}
}

// Refresh recomputes the status, attaches progress when given and writes the artifact.
func (s *StatusService) Refresh(ctx context.Context, progress *model.SyncProgress) (model.SyncStatus, error) {
	status, err := s.Compute(ctx)
	if err != nil {
		return model.SyncStatus{}, err
	}
	status.Sync = progress

	if err := s.artifacts.WriteStatus(status); err != nil {
		return model.SyncStatus{}, fmt.Errorf("failed to write status artifact: %w", err)
	}

	s.log.Debug().
		Int("total", status.TotalFunds).
		Int("enriched", status.EnrichedFunds).
		Float64("progress_pct", status.ProgressPct).
		Msg("Status refreshed")
	return status, nil
}

// Current returns the last written status, computing a fresh one when no
// artifact exists yet.
func (s *StatusService) Current(ctx context.Context) (model.SyncStatus, error) {
	status, err := s.artifacts.ReadStatus()
	if err != nil {
		s.log.Warn().Err(err).Msg("Unreadable status artifact, recomputing")
	}
	if status != nil {
		return *status, nil
	}
	return s.Compute(ctx)
}

// percent returns part/total*100 rounded to two decimals, 0 when total is 0.
func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

// progressMessage formats the dashboard progress line, e.g. "SYNCING: 4/10 (40%)".
func progressMessage(state model.SyncState, processed, total int) string {
	label := "SYNCING"
	switch state {
	case model.StateCompleted:
		label = "COMPLETED"
	case model.StatePaused:
		label = "PAUSED"
	case model.StateFailed:
		label = "FAILED"
	case model.StateIdle:
		label = "IDLE"
	}
	pct := decimal.NewFromFloat(percent(processed, total)).Round(1)
	return fmt.Sprintf("%s: %d/%d (%s%%)", label, processed, total, pct.String())
}

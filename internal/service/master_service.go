package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/artifact"
	"github.com/ndewijer/fci-sync/internal/cafci"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// MasterService downloads the fund catalog and turns it into the task list.
type MasterService struct {
	client    cafci.API
	store     repository.FundClassStore
	artifacts *artifact.Store
	log       zerolog.Logger
}

// NewMasterService creates a new MasterService.
func NewMasterService(client cafci.API, store repository.FundClassStore, artifacts *artifact.Store, logger zerolog.Logger) *MasterService {
	return &MasterService{
		client:    client,
		store:     store,
		artifacts: artifacts,
		log:       logger.With().Str("component", "master").Logger(),
	}
}

// Fetch retrieves the master list, stores the raw envelope as an audit
// artifact and returns the flattened (fund, class) list in stable order.
// Failing to store the envelope is logged and does not fail the fetch.
func (s *MasterService) Fetch(ctx context.Context) ([]model.FlattenedFundClass, error) {
	master, err := s.client.FetchMaster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch master list: %w", err)
	}

	if err := s.artifacts.SaveMasterEnvelope(master.Raw); err != nil {
		s.log.Warn().Err(err).Msg("Failed to store master list envelope")
	}

	tasks := model.Flatten(master.Funds)
	s.log.Info().
		Int("funds", len(master.Funds)).
		Int("classes", len(tasks)).
		Msg("Master list flattened")
	return tasks, nil
}

// Seed fetches the master list and writes master metadata for every class,
// leaving enrichment and composition untouched.
func (s *MasterService) Seed(ctx context.Context) (int, error) {
	rows, err := s.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	n, err := s.store.SeedMaster(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to seed master list: %w", err)
	}

	s.log.Info().Int("classes", n).Msg("Master list seeded")
	return n, nil
}

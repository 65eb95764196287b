package service

import (
	"context"
	"fmt"

	"github.com/ndewijer/fci-sync/internal/analytics"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// AnalyticsService aggregates the stored compositions for the market view.
type AnalyticsService struct {
	store repository.FundClassStore
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(store repository.FundClassStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Market returns the asset rankings, the market mix and the manager ranking
// over every class with at least one composition row.
func (s *AnalyticsService) Market(ctx context.Context) (*model.Analytics, error) {
	total, _, err := s.store.CountStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count fund classes: %w", err)
	}

	holdings, err := s.store.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	report := analytics.Aggregate(holdings, total)
	return &report, nil
}

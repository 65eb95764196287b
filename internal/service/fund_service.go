package service

import (
	"context"
	"fmt"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// FundService serves the read side of the stored fund classes.
type FundService struct {
	store repository.FundClassStore
}

// NewFundService creates a new FundService.
func NewFundService(store repository.FundClassStore) *FundService {
	return &FundService{store: store}
}

// ListFundClasses returns the summaries matching filter, ordered by name.
// An empty store yields an empty, non-nil slice.
func (s *FundService) ListFundClasses(ctx context.Context, filter model.FundClassFilter) ([]model.FundClassSummary, error) {
	classes, err := s.store.ListFundClasses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list fund classes: %w", err)
	}
	if classes == nil {
		classes = []model.FundClassSummary{}
	}
	return classes, nil
}

// GetFundClass retrieves one class with its composition.
//
// Returns:
//   - ErrFundClassNotFound when no row exists for classID.
func (s *FundService) GetFundClass(ctx context.Context, classID string) (*model.FundClassDetail, error) {
	row, err := s.store.GetFundClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fund class: %w", err)
	}
	if row == nil {
		return nil, apperrors.ErrFundClassNotFound
	}

	composition, err := s.store.GetComposition(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to get composition: %w", err)
	}
	if composition == nil {
		composition = []model.CompositionEntry{}
	}

	return &model.FundClassDetail{FlattenedFundClass: *row, Composition: composition}, nil
}

package repository

import (
	"context"

	"github.com/ndewijer/fci-sync/internal/model"
)

// FundClassStore is the storage port of the sync pipeline. Both adapters
// give the same guarantees: Upsert and Prune are atomic, and every write
// failure is wrapped in apperrors.ErrStorageFailure.
type FundClassStore interface {
	// GetFundClass returns the stored class, or nil, nil when none exists.
	GetFundClass(ctx context.Context, classID string) (*model.FlattenedFundClass, error)
	// Upsert replaces the class row and its whole composition in one transaction.
	Upsert(ctx context.Context, row model.FlattenedFundClass, composition []model.CompositionEntry) error
	// Prune deletes the class row and its composition in one transaction.
	Prune(ctx context.Context, classID string) error
	// SeedMaster inserts or refreshes master metadata only, leaving enrichment
	// columns and composition untouched.
	SeedMaster(ctx context.Context, rows []model.FlattenedFundClass) (int, error)
	ListFundClasses(ctx context.Context, filter model.FundClassFilter) ([]model.FundClassSummary, error)
	GetComposition(ctx context.Context, classID string) ([]model.CompositionEntry, error)
	// ListHoldings returns every composition row joined with its class, grouped
	// by class in source order.
	ListHoldings(ctx context.Context) ([]model.Holding, error)
	// CountStatus returns the number of class rows and of classes with composition.
	CountStatus(ctx context.Context) (total, enriched int, err error)
	Ping(ctx context.Context) error
	Close() error
}

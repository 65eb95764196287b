package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/database"
	"github.com/ndewijer/fci-sync/internal/model"
)

// PgFundClassRepository is the PostgreSQL adapter of FundClassStore.
type PgFundClassRepository struct {
	db *database.PgDB
}

// NewPgFundClassRepository creates a repository on top of a pgx pool.
func NewPgFundClassRepository(db *database.PgDB) *PgFundClassRepository {
	return &PgFundClassRepository{db: db}
}

// Shared queries rebound once for PostgreSQL placeholders.
var (
	pgSelectFundSQL        = rebind(selectFundSQL + " WHERE id = ?")
	pgUpsertFundSQL        = rebind(upsertFundSQL)
	pgSeedFundSQL          = rebind(seedFundSQL)
	pgInsertCompositionSQL = rebind(insertCompositionSQL)
	pgSelectCompositionSQL = rebind(selectCompositionSQL)
	pgDeleteCompositionSQL = rebind(deleteCompositionSQL)
	pgDeleteFundSQL        = rebind(deleteFundSQL)
)

// GetFundClass retrieves one class row. Returns nil, nil when none exists.
func (r *PgFundClassRepository) GetFundClass(ctx context.Context, classID string) (*model.FlattenedFundClass, error) {
	fc, err := scanFundClass(r.db.QueryRow(ctx, pgSelectFundSQL, classID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund class %s: %w", classID, err)
	}
	return fc, nil
}

// Upsert replaces the class row and its composition inside one transaction.
func (r *PgFundClassRepository) Upsert(ctx context.Context, row model.FlattenedFundClass, composition []model.CompositionEntry) error {
	classID := row.Class.ID
	args, err := upsertArgs(row)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageFailure, err)
	}

	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgUpsertFundSQL, args...); err != nil {
			return fmt.Errorf("failed to upsert fund row: %w", err)
		}
		if _, err := tx.Exec(ctx, pgDeleteCompositionSQL, classID); err != nil {
			return fmt.Errorf("failed to clear composition: %w", err)
		}

		if len(composition) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, entry := range composition {
			batch.Queue(pgInsertCompositionSQL, compositionArgs(classID, i, entry)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert composition: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert class %s: %w", apperrors.ErrStorageFailure, classID, err)
	}
	return nil
}

// Prune deletes the class row and all its composition rows.
func (r *PgFundClassRepository) Prune(ctx context.Context, classID string) error {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgDeleteCompositionSQL, classID); err != nil {
			return fmt.Errorf("failed to delete composition: %w", err)
		}
		if _, err := tx.Exec(ctx, pgDeleteFundSQL, classID); err != nil {
			return fmt.Errorf("failed to delete fund row: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: prune class %s: %w", apperrors.ErrStorageFailure, classID, err)
	}
	return nil
}

// SeedMaster writes master metadata for every row in one transaction.
func (r *PgFundClassRepository) SeedMaster(ctx context.Context, rows []model.FlattenedFundClass) (int, error) {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(pgSeedFundSQL, seedArgs(row)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: seed master: %w", apperrors.ErrStorageFailure, err)
	}
	return len(rows), nil
}

// ListFundClasses returns list projections of the stored classes matching filter.
func (r *PgFundClassRepository) ListFundClasses(ctx context.Context, filter model.FundClassFilter) ([]model.FundClassSummary, error) {
	query, args := listQuery(filter)

	rows, err := r.db.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds table: %w", err)
	}
	defer rows.Close()

	summaries := []model.FundClassSummary{}
	for rows.Next() {
		fc, err := scanFundClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funds table results: %w", err)
		}
		summaries = append(summaries, fc.Summary())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds table: %w", err)
	}
	return summaries, nil
}

// GetComposition returns the composition of a class in source order.
func (r *PgFundClassRepository) GetComposition(ctx context.Context, classID string) ([]model.CompositionEntry, error) {
	rows, err := r.db.Query(ctx, pgSelectCompositionSQL, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to query composition table: %w", err)
	}
	defer rows.Close()

	entries := []model.CompositionEntry{}
	for rows.Next() {
		e, err := scanComposition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan composition table results: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composition table: %w", err)
	}
	return entries, nil
}

// ListHoldings returns every composition row with its class name and manager.
func (r *PgFundClassRepository) ListHoldings(ctx context.Context) ([]model.Holding, error) {
	rows, err := r.db.Query(ctx, selectHoldingsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holdings: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// CountStatus counts class rows and classes that have composition rows.
func (r *PgFundClassRepository) CountStatus(ctx context.Context) (total, enriched int, err error) {
	if err := r.db.QueryRow(ctx, countFundsSQL).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count funds: %w", err)
	}
	if err := r.db.QueryRow(ctx, countEnrichedSQL).Scan(&enriched); err != nil {
		return 0, 0, fmt.Errorf("failed to count enriched funds: %w", err)
	}
	return total, enriched, nil
}

// Ping checks the pool.
func (r *PgFundClassRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the pool.
func (r *PgFundClassRepository) Close() error {
	r.db.Close()
	return nil
}

var (
	_ FundClassStore = (*FundClassRepository)(nil)
	_ FundClassStore = (*PgFundClassRepository)(nil)
)

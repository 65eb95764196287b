package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/model"
)

// FundClassRepository is the SQLite adapter of FundClassStore.
// It provides access to the funds and composition tables.
type FundClassRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewFundClassRepository creates a new FundClassRepository with the provided database connection.
func NewFundClassRepository(db *sql.DB) *FundClassRepository {
	return &FundClassRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *FundClassRepository) WithTx(tx *sql.Tx) *FundClassRepository {
	return &FundClassRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *FundClassRepository) getQuerier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetFundClass retrieves one class row with its parent fund metadata.
// Returns nil, nil when no row exists for classID.
func (r *FundClassRepository) GetFundClass(ctx context.Context, classID string) (*model.FlattenedFundClass, error) {
	row := r.getQuerier().QueryRowContext(ctx, selectFundSQL+" WHERE id = ?", classID)

	fc, err := scanFundClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund class %s: %w", classID, err)
	}
	return fc, nil
}

// Upsert replaces the class row and its composition inside one transaction.
// Any failure rolls back both and is reported as ErrStorageFailure.
func (r *FundClassRepository) Upsert(ctx context.Context, row model.FlattenedFundClass, composition []model.CompositionEntry) error {
	classID := row.Class.ID
	args, err := upsertArgs(row)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageFailure, err)
	}

	err = r.withTx(ctx, func(txRepo *FundClassRepository) error {
		q := txRepo.getQuerier()
		if _, err := q.ExecContext(ctx, upsertFundSQL, args...); err != nil {
			return fmt.Errorf("failed to upsert fund row: %w", err)
		}
		if _, err := q.ExecContext(ctx, deleteCompositionSQL, classID); err != nil {
			return fmt.Errorf("failed to clear composition: %w", err)
		}
		for i, entry := range composition {
			if _, err := q.ExecContext(ctx, insertCompositionSQL, compositionArgs(classID, i, entry)...); err != nil {
				return fmt.Errorf("failed to insert composition entry %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert class %s: %w", apperrors.ErrStorageFailure, classID, err)
	}
	return nil
}

// Prune deletes the class row and all its composition rows.
// Pruning a class that does not exist is not an error.
func (r *FundClassRepository) Prune(ctx context.Context, classID string) error {
	err := r.withTx(ctx, func(txRepo *FundClassRepository) error {
		q := txRepo.getQuerier()
		if _, err := q.ExecContext(ctx, deleteCompositionSQL, classID); err != nil {
			return fmt.Errorf("failed to delete composition: %w", err)
		}
		if _, err := q.ExecContext(ctx, deleteFundSQL, classID); err != nil {
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
func (r *FundClassRepository) SeedMaster(ctx context.Context, rows []model.FlattenedFundClass) (int, error) {
	err := r.withTx(ctx, func(txRepo *FundClassRepository) error {
		q := txRepo.getQuerier()
		for _, row := range rows {
			if _, err := q.ExecContext(ctx, seedFundSQL, seedArgs(row)...); err != nil {
				return fmt.Errorf("failed to seed class %s: %w", row.Class.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrStorageFailure, err)
	}
	return len(rows), nil
}

// ListFundClasses returns list projections of the stored classes matching filter,
// ordered by class name.
func (r *FundClassRepository) ListFundClasses(ctx context.Context, filter model.FundClassFilter) ([]model.FundClassSummary, error) {
	query, args := listQuery(filter)

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
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

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds table: %w", err)
	}

	return summaries, nil
}

// GetComposition returns the composition of a class in source order.
// Returns an empty slice when the class has none.
func (r *FundClassRepository) GetComposition(ctx context.Context, classID string) ([]model.CompositionEntry, error) {
	rows, err := r.getQuerier().QueryContext(ctx, selectCompositionSQL, classID)
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

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composition table: %w", err)
	}

	return entries, nil
}

// ListHoldings returns every composition row with its class name and manager.
func (r *FundClassRepository) ListHoldings(ctx context.Context) ([]model.Holding, error) {
	rows, err := r.getQuerier().QueryContext(ctx, selectHoldingsSQL)
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

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// CountStatus counts class rows and classes that have composition rows.
func (r *FundClassRepository) CountStatus(ctx context.Context) (total, enriched int, err error) {
	q := r.getQuerier()
	if err := q.QueryRowContext(ctx, countFundsSQL).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count funds: %w", err)
	}
	if err := q.QueryRowContext(ctx, countEnrichedSQL).Scan(&enriched); err != nil {
		return 0, 0, fmt.Errorf("failed to count enriched funds: %w", err)
	}
	return total, enriched, nil
}

// Ping checks the database connection.
func (r *FundClassRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database.
func (r *FundClassRepository) Close() error {
	return r.db.Close()
}

// withTx runs fn in a new transaction, or in the bound one when r already has a tx.
func (r *FundClassRepository) withTx(ctx context.Context, fn func(*FundClassRepository) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(r.WithTx(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

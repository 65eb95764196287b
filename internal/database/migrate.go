package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationResult describes the schema version after a migration run.
type MigrationResult struct {
	Applied int
	Version int64
}

// MigrateSQLite applies all pending migrations to a SQLite database.
func MigrateSQLite(ctx context.Context, db *sql.DB) (MigrationResult, error) {
	return migrate(ctx, goose.DialectSQLite3, db, "migrations/sqlite")
}

// MigratePostgres applies all pending migrations to the PostgreSQL database at databaseURL.
// goose needs a database/sql handle, so a short-lived one is opened through pgx's stdlib adapter.
func MigratePostgres(ctx context.Context, databaseURL string) (MigrationResult, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config.ConnConfig)
	defer db.Close()

	return migrate(ctx, goose.DialectPostgres, db, "migrations/postgres")
}

func migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) (MigrationResult, error) {
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to read schema version: %w", err)
	}

	return MigrationResult{Applied: len(results), Version: version}, nil
}

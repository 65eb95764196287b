package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/ndewijer/fci-sync/internal/database"
	"github.com/ndewijer/fci-sync/internal/repository"
)

// SetupTestDB creates a migrated in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := database.MigrateSQLite(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestStore returns a SQLite store over a fresh test database.
func SetupTestStore(t *testing.T) (*repository.FundClassRepository, *sql.DB) {
	t.Helper()
	db := SetupTestDB(t)
	return repository.NewFundClassRepository(db), db
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// AssertRowCount fails the test when table does not hold want rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, want int) {
	t.Helper()
	if got := CountRows(t, db, table); got != want {
		t.Errorf("Expected %d rows in %s, got %d", want, table, got)
	}
}

// FailCompositionInsert installs a trigger that aborts any composition insert
// for asset, so tests can observe transaction rollback.
func FailCompositionInsert(t *testing.T, db *sql.DB, asset string) {
	t.Helper()

	stmt := fmt.Sprintf(`CREATE TRIGGER fail_composition_insert
		BEFORE INSERT ON composition
		WHEN NEW.asset_name = '%s'
		BEGIN
			SELECT RAISE(ABORT, 'composition insert rejected');
		END`, asset)
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("Failed to create trigger: %v", err)
	}
}

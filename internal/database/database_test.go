package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_File(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fci.db"))
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
	assert.NoError(t, HealthCheck(db))
}

func TestMigrateSQLite(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// Execute
	first, err := MigrateSQLite(ctx, db)
	require.NoError(t, err)
	second, err := MigrateSQLite(ctx, db)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, first.Applied)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, int64(1), second.Version)

	for _, table := range []string{"funds", "composition"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN(":memory:"))
	assert.Contains(t, sqliteDSN("./data/fci.db"), "journal_mode(WAL)")
	assert.Contains(t, sqliteDSN("file:x.db?cache=shared"), "cache=shared&_pragma=")
}

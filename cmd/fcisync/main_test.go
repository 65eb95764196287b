package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/testutil"
	"github.com/ndewijer/fci-sync/internal/version"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// setEnv points the configuration at a temporary SQLite file and data dir.
func setEnv(t *testing.T, baseURL string) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "fci.db"))
	t.Setenv("SYNC_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("CAFCI_BASE_URL", baseURL)
	t.Setenv("CAFCI_RETRY_BASE_DELAY", "1")
	t.Setenv("SYNC_REQUEST_DELAY", "1")
	t.Setenv("SYNC_SCHEDULE", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

// WHY: The version subcommand is what deploy scripts grep for; it must print
// the linked build information.
func TestVersionCommand(t *testing.T) {
	// Execute
	out, err := execute(t, "version")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, version.Commit)
}

// WHY: The sync, status and master subcommands share one wiring path. A run
// against a live upstream must enrich the store and leave a status artifact
// the status command reads back.
func TestSyncCommands(t *testing.T) {
	today := time.Now().UTC().Format("02/01/2006")

	upstream := testutil.NewFakeUpstream(t).
		WithMaster(`{"data":[{"id":10,"nombre":"Renta Fija Plus","clase_fondos":[{"id":20,"nombre":"Clase A"},{"id":21,"nombre":"Clase B"}]}]}`).
		WithDetail("20", fmt.Sprintf(`{"data":{"info":{
			"diaria":{"actual":{"referenceDay":%q}},
			"semanal":{"fechaDatos":%q,"carteras":[{"nombreActivo":"BONO AR","share":"40.00"}]}}}}`, today, today))

	t.Run("sync writes a report", func(t *testing.T) {
		// Setup
		setEnv(t, upstream.URL())

		// Execute
		out, err := execute(t, "sync")

		// Assert
		require.NoError(t, err)

		var report model.SyncReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, model.StateCompleted, report.State)
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.Actions[model.ActionUpdate])
		assert.Equal(t, 1, report.Actions[model.ActionSkip])
	})

	t.Run("status reflects the finished run", func(t *testing.T) {
		// Setup
		setEnv(t, upstream.URL())
		_, err := execute(t, "sync")
		require.NoError(t, err)

		// Execute
		out, err := execute(t, "status")

		// Assert
		require.NoError(t, err)

		var status model.SyncStatus
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Equal(t, 1, status.TotalFunds)
		assert.Equal(t, 1, status.EnrichedFunds)
		assert.InDelta(t, 100.0, status.ProgressPct, 1e-9)
	})

	t.Run("master seed inserts every class", func(t *testing.T) {
		// Setup
		setEnv(t, upstream.URL())

		// Execute
		out, err := execute(t, "master", "--seed")

		// Assert
		require.NoError(t, err)
		assert.Contains(t, out, "seeded 2 fund classes")
	})

	t.Run("migrate on an empty database", func(t *testing.T) {
		// Setup
		setEnv(t, upstream.URL())

		// Execute
		_, err := execute(t, "migrate")

		// Assert
		assert.NoError(t, err)
	})
}

// WHY: A bad driver must fail before anything touches the network or disk.
func TestSyncCommandRejectsUnknownDriver(t *testing.T) {
	// Setup
	setEnv(t, "http://127.0.0.1:0")
	t.Setenv("DB_DRIVER", "mysql")

	// Execute
	_, err := execute(t, "sync")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

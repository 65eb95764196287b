package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ndewijer/fci-sync/internal/database"
)

// RequireIntegration skips the test unless FCI_INTEGRATION=1.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("FCI_INTEGRATION") != "1" {
		t.Skip("set FCI_INTEGRATION=1 to run integration tests")
	}
}

// TestPostgres is a migrated PostgreSQL test container.
type TestPostgres struct {
	Container *postgres.PostgresContainer
	DB        *database.PgDB
	URL       string
}

// SetupTestPostgres starts a PostgreSQL container and runs the migrations.
// The container is terminated when the test completes.
func SetupTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()
	RequireIntegration(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fcisync_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Labels: map[string]string{
					"test":      "fcisync-repository",
					"test-name": t.Name(),
					"cleanup":   "auto",
				},
			},
		}),
	)
	require.NoError(t, err)

	tp := &TestPostgres{Container: container}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if tp.DB != nil {
			tp.DB.Close()
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, err = database.MigratePostgres(ctx, url)
	require.NoError(t, err)

	tp.DB, err = database.OpenPostgres(ctx, url)
	require.NoError(t, err)
	tp.URL = url

	return tp
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		chdir(t, t.TempDir())

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "localhost:5001", cfg.Server.Addr)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "./data/fci.db", cfg.Database.Path)
		assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
		assert.Equal(t, 2*time.Second, cfg.Upstream.RetryBaseDelay)
		assert.Equal(t, 2000*time.Millisecond, cfg.Sync.RequestDelay)
		assert.Equal(t, 60*time.Second, cfg.Sync.RateLimitBackoff)
		assert.Equal(t, 1, cfg.Sync.StaleMonths)
		assert.Equal(t, 1, cfg.Sync.CheckpointEvery)
		assert.Equal(t, 10, cfg.Sync.StatusEvery)
		assert.Equal(t, "fci.sync", cfg.Events.SubjectPrefix)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("overrides", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("SERVER_PORT", "8080")
		t.Setenv("SYNC_REQUEST_DELAY", "500")
		t.Setenv("SYNC_RATE_LIMIT_BACKOFF", "2m")
		t.Setenv("SYNC_STALE_MONTHS", "3")
		t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , https://b.example ")
		t.Setenv("LOG_PRETTY", "true")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "localhost:8080", cfg.Server.Addr)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.RequestDelay)
		assert.Equal(t, 2*time.Minute, cfg.Sync.RateLimitBackoff)
		assert.Equal(t, 3, cfg.Sync.StaleMonths)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.True(t, cfg.Log.Pretty)
	})

	t.Run("malformed values are errors", func(t *testing.T) {
		cases := map[string]string{
			"CAFCI_TIMEOUT":         "soon",
			"CAFCI_MAX_ATTEMPTS":    "0",
			"SYNC_CHECKPOINT_EVERY": "ten",
			"LOG_PRETTY":            "maybe",
			"SYNC_REQUEST_DELAY":    "-5",
		}
		for key, value := range cases {
			t.Run(key, func(t *testing.T) {
				chdir(t, t.TempDir())
				t.Setenv(key, value)

				_, err := Load()
				assert.ErrorContains(t, err, key)
			})
		}
	})

	t.Run("postgres requires a url", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DATABASE_URL", "")

		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("unknown driver", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("DB_DRIVER", "mongo")

		_, err := Load()
		assert.ErrorContains(t, err, "DB_DRIVER")
	})
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}

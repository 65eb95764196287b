package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/api"
	"github.com/ndewijer/fci-sync/internal/config"
	"github.com/ndewijer/fci-sync/internal/metrics"
	"github.com/ndewijer/fci-sync/internal/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, db := testutil.SetupTestStore(t)
	testutil.NewFundClass().WithIDs("10", "20").WithDates("01/01/2025").WithHolding("BONO AR", 40).Build(t, db)
	syncSvc, _, _ := testutil.NewTestSyncService(t, testutil.NewMockCafciClient(), store)

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	router := api.NewRouter(context.Background(), api.Services{
		System:    testutil.NewTestSystemService(t, store),
		Funds:     testutil.NewTestFundService(t, store),
		Analytics: testutil.NewTestAnalyticsService(t, store),
		Sync:      syncSvc,
	}, metrics.NewSync().Handler(), cfg, zerolog.Nop())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "health", path: "/api/system/health", status: http.StatusOK, body: `"healthy"`},
		{name: "version", path: "/api/system/version", status: http.StatusOK, body: "app_version"},
		{name: "list", path: "/api/funds", status: http.StatusOK, body: `"20"`},
		{name: "detail", path: "/api/funds/20", status: http.StatusOK, body: "BONO AR"},
		{name: "detail with invalid id", path: "/api/funds/abc", status: http.StatusBadRequest},
		{name: "detail not found", path: "/api/funds/404", status: http.StatusNotFound},
		{name: "analytics", path: "/api/analytics", status: http.StatusOK, body: `"RENTA_FIJA":100`},
		{name: "status", path: "/api/status", status: http.StatusOK, body: "totalFunds"},
		{name: "sync state", path: "/api/sync", status: http.StatusOK, body: `"running":false`},
		{name: "metrics", path: "/metrics", status: http.StatusOK, body: "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				buf := new(strings.Builder)
				_, err := io.Copy(buf, resp.Body)
				require.NoError(t, err)
				assert.Contains(t, buf.String(), tt.body)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/funds", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

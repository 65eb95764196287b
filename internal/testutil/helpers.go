package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/artifact"
	"github.com/ndewijer/fci-sync/internal/cafci"
	"github.com/ndewijer/fci-sync/internal/repository"
	"github.com/ndewijer/fci-sync/internal/service"
)

// FixedNow is the clock used by test services: 2025-01-15 12:00 UTC.
var FixedNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

// Sleeper records requested waits instead of sleeping.
type Sleeper struct {
	mu    sync.Mutex
	Waits []time.Duration
}

// Sleep records d and returns ctx.Err().
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Waits = append(s.Waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Count returns how many waits of exactly d were requested.
func (s *Sleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.Waits {
		if w == d {
			n++
		}
	}
	return n
}

// TestSyncOptions returns options with distinguishable delays.
func TestSyncOptions() service.SyncOptions {
	opts := service.DefaultSyncOptions()
	opts.RequestDelay = 2 * time.Second
	opts.RateLimitBackoff = time.Minute
	return opts
}

// NewTestSyncService creates a SyncService over store with a fixed clock, a
// recording sleeper and artifacts in a temp dir.
func NewTestSyncService(t *testing.T, client cafci.API, store repository.FundClassStore) (*service.SyncService, *artifact.Store, *Sleeper) {
	t.Helper()
	return NewTestSyncServiceWithOptions(t, client, store, TestSyncOptions())
}

// NewTestSyncServiceWithOptions is NewTestSyncService with custom options.
func NewTestSyncServiceWithOptions(t *testing.T, client cafci.API, store repository.FundClassStore, opts service.SyncOptions) (*service.SyncService, *artifact.Store, *Sleeper) {
	t.Helper()

	artifacts := artifact.NewStore(t.TempDir())
	sleeper := &Sleeper{}
	svc := service.NewSyncService(client, store, artifacts, nil, nil, opts, zerolog.Nop()).
		WithClock(func() time.Time { return FixedNow }).
		WithSleeper(sleeper.Sleep)
	return svc, artifacts, sleeper
}

// NewTestFundService creates a FundService over store.
func NewTestFundService(t *testing.T, store repository.FundClassStore) *service.FundService {
	t.Helper()
	return service.NewFundService(store)
}

// NewTestAnalyticsService creates an AnalyticsService over store.
func NewTestAnalyticsService(t *testing.T, store repository.FundClassStore) *service.AnalyticsService {
	t.Helper()
	return service.NewAnalyticsService(store)
}

// NewTestSystemService creates a SystemService over store.
func NewTestSystemService(t *testing.T, store repository.FundClassStore) *service.SystemService {
	t.Helper()
	return service.NewSystemService(store)
}

// NewTestStatusService creates a StatusService with artifacts in a temp dir.
func NewTestStatusService(t *testing.T, store repository.FundClassStore) (*service.StatusService, *artifact.Store) {
	t.Helper()
	artifacts := artifact.NewStore(t.TempDir())
	return service.NewStatusService(store, artifacts, zerolog.Nop()), artifacts
}

// NewTestMasterService creates a MasterService with artifacts in a temp dir.
func NewTestMasterService(t *testing.T, client cafci.API, store repository.FundClassStore) (*service.MasterService, *artifact.Store) {
	t.Helper()
	artifacts := artifact.NewStore(t.TempDir())
	return service.NewMasterService(client, store, artifacts, zerolog.Nop()), artifacts
}

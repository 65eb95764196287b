package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
	"github.com/ndewijer/fci-sync/internal/testutil"
)

// TestStatusService_Compute tests the derived dashboard counters.
//
// WHY: progressPct is derived from storage on demand. It must be 0 on an empty
// store instead of dividing by zero, and only classes with composition count
// as enriched.
func TestStatusService_Compute(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store, _ := testutil.SetupTestStore(t)
		svc, _ := testutil.NewTestStatusService(t, store)

		status, err := svc.Compute(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, status.TotalFunds)
		assert.Equal(t, 0, status.EnrichedFunds)
		assert.Equal(t, 0.0, status.ProgressPct)
	})

	t.Run("counts classes with composition as enriched", func(t *testing.T) {
		// Setup
		store, db := testutil.SetupTestStore(t)
		testutil.NewFundClass().WithDates("01/01/2025").WithHolding("BONO AR", 40).Build(t, db)
		testutil.NewFundClass().Build(t, db)
		testutil.NewFundClass().Build(t, db)
		svc, _ := testutil.NewTestStatusService(t, store)

		// Execute
		status, err := svc.Compute(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 3, status.TotalFunds)
		assert.Equal(t, 1, status.EnrichedFunds)
		assert.InDelta(t, 33.33, status.ProgressPct, 1e-9)
	})
}

// TestStatusService_RefreshAndCurrent tests writing and reading the status artifact.
func TestStatusService_RefreshAndCurrent(t *testing.T) {
	t.Run("current falls back to computing when no artifact exists", func(t *testing.T) {
		store, db := testutil.SetupTestStore(t)
		testutil.NewFundClass().Build(t, db)
		svc, _ := testutil.NewTestStatusService(t, store)

		status, err := svc.Current(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, status.TotalFunds)
		assert.Nil(t, status.Sync)
	})

	t.Run("refresh persists the sync block", func(t *testing.T) {
		// Setup
		store, _ := testutil.SetupTestStore(t)
		svc, artifacts := testutil.NewTestStatusService(t, store)
		progress := &model.SyncProgress{State: model.StateRunning, Processed: 4, Total: 10, Message: "SYNCING: 4/10 (40%)"}

		// Execute
		_, err := svc.Refresh(context.Background(), progress)
		require.NoError(t, err)
		current, err := svc.Current(context.Background())

		// Assert
		require.NoError(t, err)
		require.NotNil(t, current.Sync)
		assert.Equal(t, "SYNCING: 4/10 (40%)", current.Sync.Message)

		onDisk, err := artifacts.ReadStatus()
		require.NoError(t, err)
		require.NotNil(t, onDisk)
		assert.Equal(t, 10, onDisk.Sync.Total)
	})
}

// TestSyncService_ProgressMessage tests the progress line exposed while syncing.
func TestSyncService_ProgressMessage(t *testing.T) {
	store, _ := testutil.SetupTestStore(t)
	client := testutil.NewMockCafciClient().
		WithFunds(testutil.MakeFund("10", "Fund A", "20", "21", "22"))
	svc, _, _ := testutil.NewTestSyncService(t, client, store)

	var seen []string
	client.OnFetch = func(_, _ string) {
		seen = append(seen, svc.Progress().Message)
	}

	_, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{
		"SYNCING: 0/3 (0%)",
		"SYNCING: 1/3 (33.3%)",
		"SYNCING: 2/3 (66.7%)",
	}, seen)
	assert.Equal(t, "COMPLETED: 3/3 (100%)", svc.Progress().Message)
}

// blockingCountStore holds CountStatus until release is closed and records the
// context error seen by each count.
type blockingCountStore struct {
	repository.FundClassStore
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	ctxErrs []error
}

func (s *blockingCountStore) CountStatus(ctx context.Context) (int, int, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release

	s.mu.Lock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	return s.FundClassStore.CountStatus(ctx)
}

// TestStatusService_Compute_CallerCancel tests a caller that gives up while
// the shared count is running.
//
// WHY: Concurrent readers share one count query. Cancelling the first caller
// must not cancel the query the others are waiting on.
func TestStatusService_Compute_CallerCancel(t *testing.T) {
	// Setup
	inner, db := testutil.SetupTestStore(t)
	testutil.NewFundClass().WithDates("01/01/2025").WithHolding("BONO AR", 40).Build(t, db)
	store := &blockingCountStore{
		FundClassStore: inner,
		entered:        make(chan struct{}, 2),
		release:        make(chan struct{}),
	}
	svc, _ := testutil.NewTestStatusService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Compute(ctx)
		first <- err
	}()
	<-store.entered

	// Execute
	cancel()
	firstErr := <-first

	second := make(chan model.SyncStatus, 1)
	go func() {
		status, err := svc.Compute(context.Background())
		assert.NoError(t, err)
		second <- status
	}()
	close(store.release)
	status := <-second

	// Assert
	assert.ErrorIs(t, firstErr, context.Canceled)
	assert.Equal(t, 1, status.TotalFunds)
	assert.Equal(t, 1, status.EnrichedFunds)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotEmpty(t, store.ctxErrs)
	for _, err := range store.ctxErrs {
		assert.NoError(t, err, "the shared count must not see the caller's cancellation")
	}
}

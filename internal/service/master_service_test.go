package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/testutil"
)

// TestMasterService_Fetch tests flattening of the master list.
//
// WHY: Checkpoint offsets index into this list, so its order must follow the
// source order of funds and then classes.
func TestMasterService_Fetch(t *testing.T) {
	t.Run("flattens in source order and stores the envelope", func(t *testing.T) {
		// Setup
		store, _ := testutil.SetupTestStore(t)
		client := testutil.NewMockCafciClient().WithFunds(
			testutil.MakeFund("11", "Fund B", "30"),
			testutil.MakeFund("10", "Fund A", "21", "20"),
		)
		svc, artifacts := testutil.NewTestMasterService(t, client, store)

		// Execute
		tasks, err := svc.Fetch(context.Background())

		// Assert
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		ids := []string{tasks[0].Class.ID, tasks[1].Class.ID, tasks[2].Class.ID}
		assert.Equal(t, []string{"30", "21", "20"}, ids)
		assert.Equal(t, "Fund A", tasks[1].Fund.Name)
		assert.Nil(t, tasks[1].Fund.Classes)

		raw, err := artifacts.LoadMasterEnvelope()
		require.NoError(t, err)
		assert.NotEmpty(t, raw)
	})

	t.Run("propagates upstream failure", func(t *testing.T) {
		store, _ := testutil.SetupTestStore(t)
		client := testutil.NewMockCafciClient().
			WithMasterError(fmt.Errorf("%w: boom", apperrors.ErrUpstreamUnavailable))
		svc, _ := testutil.NewTestMasterService(t, client, store)

		tasks, err := svc.Fetch(context.Background())

		require.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		assert.Nil(t, tasks)
	})
}

// TestMasterService_Seed tests seeding master metadata.
//
// WHY: Seeding makes the whole catalog listable before the first detail pass,
// and must never wipe enrichment written by an earlier sync.
func TestMasterService_Seed(t *testing.T) {
	// Setup
	store, db := testutil.SetupTestStore(t)
	testutil.NewFundClass().
		WithIDs("10", "20").
		WithDates("01/01/2025").
		WithHolding("BONO AR", 40).
		Build(t, db)

	client := testutil.NewMockCafciClient().WithFunds(
		testutil.MakeFund("10", "Renamed Fund", "20", "21"),
	)
	svc, _ := testutil.NewTestMasterService(t, client, store)

	// Execute
	n, err := svc.Seed(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	testutil.AssertRowCount(t, db, "funds", 2)
	testutil.AssertRowCount(t, db, "composition", 1)

	row, err := store.GetFundClass(context.Background(), "20")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Renamed Fund", row.Fund.Name)
	assert.Equal(t, "01/01/2025", row.Class.CompositionDate, "enrichment survives a reseed")
}

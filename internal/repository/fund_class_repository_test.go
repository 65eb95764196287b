package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
	"github.com/ndewijer/fci-sync/internal/testutil"
)

// TestFundClassRepository_Upsert tests row and composition replacement.
//
// WHY: The composition of a class is replaced wholesale inside the same
// transaction as the class row. Readers must never see a mix of old and new.
func TestFundClassRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts row and composition", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)
		b := testutil.NewFundClass().WithIDs("10", "20").WithDates("01/01/2025").WithDayReturn(1.25).
			WithHolding("BONO AR", 40).WithHolding("LETRA", 60)

		// Execute
		err := repo.Upsert(ctx, b.Row(), b.Composition())

		// Assert
		require.NoError(t, err)
		row, err := repo.GetFundClass(ctx, "20")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "10", row.Fund.ID)
		assert.Equal(t, "01/01/2025", row.Class.CompositionDate)
		require.NotNil(t, row.Class.Performance.Day.Return)
		assert.InDelta(t, 1.25, *row.Class.Performance.Day.Return, 1e-9)

		composition, err := repo.GetComposition(ctx, "20")
		require.NoError(t, err)
		require.Len(t, composition, 2)
		assert.Equal(t, "BONO AR", composition[0].Asset)
		assert.Equal(t, "LETRA", composition[1].Asset)
	})

	t.Run("replaces previous composition", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)
		testutil.NewFundClass().WithIDs("10", "20").WithDates("01/01/2025").
			WithHolding("A", 10).WithHolding("B", 20).WithHolding("C", 70).Build(t, db)

		b := testutil.NewFundClass().WithIDs("10", "20").WithDates("08/01/2025").WithHolding("D", 100)
		require.NoError(t, repo.Upsert(ctx, b.Row(), b.Composition()))

		testutil.AssertRowCount(t, db, "funds", 1)
		testutil.AssertRowCount(t, db, "composition", 1)
		composition, err := repo.GetComposition(ctx, "20")
		require.NoError(t, err)
		assert.Equal(t, "D", composition[0].Asset)
	})

	t.Run("failed composition insert rolls back the whole write", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)
		testutil.NewFundClass().WithIDs("10", "20").WithDates("01/01/2025").WithHolding("KEEP", 100).Build(t, db)
		testutil.FailCompositionInsert(t, db, "BOOM")

		b := testutil.NewFundClass().WithIDs("10", "20").WithDates("08/01/2025").
			WithHolding("NEW", 50).WithHolding("BOOM", 50)

		// Execute
		err := repo.Upsert(ctx, b.Row(), b.Composition())

		// Assert
		require.ErrorIs(t, err, apperrors.ErrStorageFailure)
		row, err := repo.GetFundClass(ctx, "20")
		require.NoError(t, err)
		assert.Equal(t, "01/01/2025", row.Class.CompositionDate)
		composition, err := repo.GetComposition(ctx, "20")
		require.NoError(t, err)
		require.Len(t, composition, 1)
		assert.Equal(t, "KEEP", composition[0].Asset)
	})

	t.Run("unpublished numbers stay null", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)
		b := testutil.NewFundClass().WithIDs("10", "20")
		require.NoError(t, repo.Upsert(ctx, b.Row(), []model.CompositionEntry{{Asset: "NO SHARE"}}))

		row, err := repo.GetFundClass(ctx, "20")
		require.NoError(t, err)
		assert.Nil(t, row.Class.AUM)
		assert.Nil(t, row.Class.MinInvestment)
		assert.Nil(t, row.Class.Performance.Day.Return)

		composition, err := repo.GetComposition(ctx, "20")
		require.NoError(t, err)
		assert.Nil(t, composition[0].Percentage)
	})
}

// TestFundClassRepository_Prune tests deleting a class.
func TestFundClassRepository_Prune(t *testing.T) {
	ctx := context.Background()

	t.Run("removes row and composition", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)
		testutil.NewFundClass().WithIDs("10", "20").WithHolding("A", 50).WithHolding("B", 50).Build(t, db)
		other := testutil.NewFundClass().WithHolding("C", 100).Build(t, db)

		require.NoError(t, repo.Prune(ctx, "20"))

		row, err := repo.GetFundClass(ctx, "20")
		require.NoError(t, err)
		assert.Nil(t, row)
		testutil.AssertRowCount(t, db, "funds", 1)
		testutil.AssertRowCount(t, db, "composition", 1)

		kept, err := repo.GetFundClass(ctx, other.Class.ID)
		require.NoError(t, err)
		assert.NotNil(t, kept)
	})

	t.Run("unknown class is not an error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewFundClassRepository(db)

		assert.NoError(t, repo.Prune(ctx, "404"))
	})
}

// TestFundClassRepository_SeedMaster tests master-only writes.
//
// WHY: Seeding refreshes names and fees but must not clear enrichment columns
// or composition written by the detail pass.
func TestFundClassRepository_SeedMaster(t *testing.T) {
	// Setup
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFundClassRepository(db)
	testutil.NewFundClass().WithIDs("10", "20").WithDates("01/01/2025").WithDayReturn(2).WithHolding("A", 100).Build(t, db)

	rows := model.Flatten([]model.Fund{testutil.MakeFund("10", "New Name", "20", "21")})

	// Execute
	n, err := repo.SeedMaster(ctx, rows)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	row, err := repo.GetFundClass(ctx, "20")
	require.NoError(t, err)
	assert.Equal(t, "New Name", row.Fund.Name)
	assert.Equal(t, "01/01/2025", row.Class.CompositionDate)
	require.NotNil(t, row.Class.Performance.Day.Return)
	assert.InDelta(t, 2.0, *row.Class.Performance.Day.Return, 1e-9)
	testutil.AssertRowCount(t, db, "composition", 1)

	fresh, err := repo.GetFundClass(ctx, "21")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.False(t, fresh.Class.Enriched())
}

// TestFundClassRepository_ListFundClasses tests the list filters.
func TestFundClassRepository_ListFundClasses(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFundClassRepository(db)

	testutil.NewFundClass().WithIDs("1", "11").WithName("Alpha").WithCurrency("ARS").WithIncomeType("Renta Fija").
		WithManager("Gestora Norte SA").WithDates("01/01/2025").WithHolding("A", 100).Build(t, db)
	testutil.NewFundClass().WithIDs("2", "12").WithName("Beta").WithCurrency("USD").WithIncomeType("Renta Variable").
		WithManager("Gestora Sur SA").Build(t, db)
	testutil.NewFundClass().WithIDs("3", "13").WithName("Gamma").WithCurrency("USD").WithIncomeType("Renta Fija").
		WithManager("Gestora Norte SA").Build(t, db)

	enriched := true
	notEnriched := false
	tests := []struct {
		name   string
		filter model.FundClassFilter
		want   []string
	}{
		{name: "no filter", filter: model.FundClassFilter{}, want: []string{"11", "12", "13"}},
		{name: "currency is case insensitive", filter: model.FundClassFilter{Currency: "usd"}, want: []string{"12", "13"}},
		{name: "income type", filter: model.FundClassFilter{IncomeType: "renta fija"}, want: []string{"11", "13"}},
		{name: "manager substring", filter: model.FundClassFilter{Manager: "norte"}, want: []string{"11", "13"}},
		{name: "enriched only", filter: model.FundClassFilter{Enriched: &enriched}, want: []string{"11"}},
		{name: "not enriched", filter: model.FundClassFilter{Enriched: &notEnriched}, want: []string{"12", "13"}},
		{name: "combined", filter: model.FundClassFilter{Currency: "USD", IncomeType: "Renta Fija"}, want: []string{"13"}},
		{name: "no match", filter: model.FundClassFilter{Currency: "EUR"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := repo.ListFundClasses(ctx, tt.filter)
			require.NoError(t, err)

			var got []string
			for _, c := range classes {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestFundClassRepository_CountStatus tests the status counters.
func TestFundClassRepository_CountStatus(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFundClassRepository(db)

	total, enriched, err := repo.CountStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, enriched)

	testutil.NewFundClass().WithHolding("A", 50).WithHolding("B", 50).Build(t, db)
	testutil.NewFundClass().Build(t, db)

	total, enriched, err = repo.CountStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, enriched, "classes are counted once regardless of holdings")
}

// TestFundClassRepository_ListHoldings tests the analytics join.
//
// WHY: Aggregation relies on holdings arriving grouped by class, in source
// order, with the class name and manager attached. Classes without
// composition produce no rows.
func TestFundClassRepository_ListHoldings(t *testing.T) {
	// Setup
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := repository.NewFundClassRepository(db)

	testutil.NewFundClass().WithIDs("10", "20").WithName("Clase A").WithManager("Gestora SA").
		WithDates("01/01/2025").WithHolding("BONO AR", 60).WithHolding("LETRA", 40).Build(t, db)
	testutil.NewFundClass().WithIDs("10", "21").WithName("Clase B").Build(t, db)

	// Execute
	holdings, err := repo.ListHoldings(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "20", holdings[0].ClassID)
	assert.Equal(t, "Clase A", holdings[0].ClassName)
	assert.Equal(t, "Gestora SA", holdings[0].Manager)
	assert.Equal(t, "BONO AR", holdings[0].Asset)
	require.NotNil(t, holdings[0].Percentage)
	assert.InDelta(t, 60.0, *holdings[0].Percentage, 1e-9)
	assert.Equal(t, "LETRA", holdings[1].Asset)
}

package testutil

import (
	"context"
	"database/sql"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/repository"
)

var idSeq atomic.Int64

// MakeID returns a unique numeric upstream-style ID.
func MakeID() string {
	return strconv.FormatInt(1000+idSeq.Add(1), 10)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// FundClassBuilder provides a fluent interface for creating test fund classes.
//
// Example usage:
//
//	// Master-only row with defaults
//	row := testutil.NewFundClass().Build(t, db)
//
//	// Enriched row with one holding
//	row := testutil.NewFundClass().
//	    WithIDs("10", "20").
//	    WithCompositionDate("01/01/2025").
//	    WithHolding("BONO AR", 40).
//	    Build(t, db)
type FundClassBuilder struct {
	row         model.FlattenedFundClass
	composition []model.CompositionEntry
}

// NewFundClass creates a FundClassBuilder with sensible defaults.
func NewFundClass() *FundClassBuilder {
	fundID := MakeID()
	return &FundClassBuilder{
		row: model.FlattenedFundClass{
			Fund: model.Fund{
				ID:         fundID,
				Name:       "Test Fund " + fundID,
				Currency:   "ARS",
				CurrencyID: "1",
				Manager:    model.Entity{Name: "Test Manager SA"},
				IncomeType: model.Classification{ID: "3", Name: "Renta Fija"},
				Horizon:    model.Classification{Name: "Corto Plazo"},
				Status:     "1",
			},
			Class: model.FundClass{
				ID:     MakeID(),
				FundID: fundID,
				Name:   "Clase A",
			},
		},
	}
}

// WithIDs sets the fund and class IDs.
func (b *FundClassBuilder) WithIDs(fundID, classID string) *FundClassBuilder {
	b.row.Fund.ID = fundID
	b.row.Class.FundID = fundID
	b.row.Class.ID = classID
	return b
}

// WithName sets the class name.
func (b *FundClassBuilder) WithName(name string) *FundClassBuilder {
	b.row.Class.Name = name
	return b
}

// WithFundName sets the parent fund name.
func (b *FundClassBuilder) WithFundName(name string) *FundClassBuilder {
	b.row.Fund.Name = name
	return b
}

// WithCurrency sets the fund currency.
func (b *FundClassBuilder) WithCurrency(currency string) *FundClassBuilder {
	b.row.Fund.Currency = currency
	return b
}

// WithManager sets the fund manager name.
func (b *FundClassBuilder) WithManager(name string) *FundClassBuilder {
	b.row.Fund.Manager.Name = name
	return b
}

// WithIncomeType sets the income type name.
func (b *FundClassBuilder) WithIncomeType(name string) *FundClassBuilder {
	b.row.Fund.IncomeType.Name = name
	return b
}

// WithReferenceDate sets the enrichment reference date.
func (b *FundClassBuilder) WithReferenceDate(date string) *FundClassBuilder {
	b.row.Class.ReferenceDate = date
	return b
}

// WithCompositionDate sets the enrichment composition date.
func (b *FundClassBuilder) WithCompositionDate(date string) *FundClassBuilder {
	b.row.Class.CompositionDate = date
	return b
}

// WithDates sets both enrichment dates.
func (b *FundClassBuilder) WithDates(date string) *FundClassBuilder {
	b.row.Class.ReferenceDate = date
	b.row.Class.CompositionDate = date
	return b
}

// WithDayReturn sets the daily return.
func (b *FundClassBuilder) WithDayReturn(v float64) *FundClassBuilder {
	b.row.Class.Performance.Set(model.PeriodDay, model.PeriodReturn{Return: Float(v)})
	return b
}

// WithHolding appends a composition entry.
func (b *FundClassBuilder) WithHolding(asset string, pct float64) *FundClassBuilder {
	b.composition = append(b.composition, model.CompositionEntry{Asset: asset, Percentage: Float(pct)})
	return b
}

// Row returns the built row without persisting it.
func (b *FundClassBuilder) Row() model.FlattenedFundClass {
	return b.row
}

// Composition returns the holdings added so far.
func (b *FundClassBuilder) Composition() []model.CompositionEntry {
	return b.composition
}

// Build persists the row and its composition and returns the row.
func (b *FundClassBuilder) Build(t *testing.T, db *sql.DB) model.FlattenedFundClass {
	t.Helper()

	row := b.row
	if row.Class.Enriched() && row.Class.LastSync.IsZero() {
		row.Class.LastSync = time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	}

	repo := repository.NewFundClassRepository(db)
	if err := repo.Upsert(context.Background(), row, b.composition); err != nil {
		t.Fatalf("Failed to create fund class: %v", err)
	}
	return row
}

// DetailBuilder provides a fluent interface for upstream detail records.
type DetailBuilder struct {
	d model.Detail
}

// NewDetail creates a DetailBuilder for the given class.
func NewDetail(fundID, classID string) *DetailBuilder {
	return &DetailBuilder{d: model.Detail{
		FundID:  fundID,
		ClassID: classID,
		Returns: map[string]model.PeriodReturn{},
	}}
}

// WithReferenceDate sets the reference date.
func (b *DetailBuilder) WithReferenceDate(date string) *DetailBuilder {
	b.d.ReferenceDate = date
	return b
}

// WithCompositionDate sets the composition date.
func (b *DetailBuilder) WithCompositionDate(date string) *DetailBuilder {
	b.d.CompositionDate = date
	return b
}

// WithDates sets both the reference and composition date.
func (b *DetailBuilder) WithDates(date string) *DetailBuilder {
	b.d.ReferenceDate = date
	b.d.CompositionDate = date
	return b
}

// WithReturn sets the return of an upstream period key.
func (b *DetailBuilder) WithReturn(key string, v float64) *DetailBuilder {
	b.d.Returns[key] = model.PeriodReturn{Return: Float(v)}
	return b
}

// WithHolding appends a composition entry.
func (b *DetailBuilder) WithHolding(asset string, pct float64) *DetailBuilder {
	b.d.Composition = append(b.d.Composition, model.CompositionEntry{Asset: asset, Percentage: Float(pct)})
	return b
}

// Build returns the detail record.
func (b *DetailBuilder) Build() *model.Detail {
	d := b.d
	return &d
}

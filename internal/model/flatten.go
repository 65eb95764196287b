package model

import "strings"

// FlattenedFundClass is the canonical denormalized shape of a fund class:
// the class itself plus its parent fund metadata. It is what the storage
// layer persists as one row and what every read projection derives from.
type FlattenedFundClass struct {
	Fund  Fund      `json:"fund"`
	Class FundClass `json:"class"`
}

// Flatten expands funds into one FlattenedFundClass per class, in source order
// of funds and then source order of classes within each fund. The order is
// deterministic so that checkpoint offsets stay meaningful across runs.
func Flatten(funds []Fund) []FlattenedFundClass {
	total := 0
	for _, f := range funds {
		total += len(f.Classes)
	}

	flat := make([]FlattenedFundClass, 0, total)
	for _, f := range funds {
		parent := f
		parent.Classes = nil
		for _, c := range f.Classes {
			if c.FundID == "" {
				c.FundID = f.ID
			}
			flat = append(flat, FlattenedFundClass{Fund: parent, Class: c})
		}
	}
	return flat
}

// ApplyDetail merges a detail record into the flattened class and returns the result.
// Master identifiers win over detail identifiers; returns, dates and AUM always
// come from the detail.
func (f FlattenedFundClass) ApplyDetail(d Detail) FlattenedFundClass {
	c := f.Class
	c.ReferenceDate = d.ReferenceDate
	c.CompositionDate = d.CompositionDate
	c.AUM = d.AUM
	c.UnitValue = d.UnitValue
	c.Performance = d.Performance()
	c.RawDetail = d.Raw

	c.ISIN = firstNonEmpty(c.ISIN, d.ISIN)
	c.Bloomberg = firstNonEmpty(c.Bloomberg, d.Bloomberg)
	c.CurrencyID = firstNonEmpty(c.CurrencyID, d.CurrencyID)
	if c.MinInvestment == nil {
		c.MinInvestment = d.MinInvestment
	}
	c.Fees = mergeFees(c.Fees, d.Fees)

	f.Class = c
	return f
}

// Summary projects the flattened class down to the list view shape.
func (f FlattenedFundClass) Summary() FundClassSummary {
	return FundClassSummary{
		ID:              f.Class.ID,
		Name:            f.Class.Name,
		FundID:          f.Fund.ID,
		FundName:        f.Fund.Name,
		Manager:         f.Fund.Manager.Name,
		Currency:        firstNonEmpty(f.Fund.Currency, f.Class.CurrencyID),
		IncomeType:      f.Fund.IncomeType.Name,
		Horizon:         f.Fund.Horizon.Name,
		Status:          f.Fund.Status,
		MinInvestment:   f.Class.MinInvestment,
		CompositionDate: f.Class.CompositionDate,
		ReturnDay:       f.Class.Performance.Day.Return,
		ReturnMonth:     f.Class.Performance.Month.Return,
		ReturnYTD:       f.Class.Performance.YTD.Return,
		Enriched:        f.Class.Enriched(),
	}
}

// FundClassSummary is the list-view projection of a FlattenedFundClass.
type FundClassSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	FundID          string   `json:"fundId"`
	FundName        string   `json:"fundName"`
	Manager         string   `json:"manager,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	IncomeType      string   `json:"incomeType,omitempty"`
	Horizon         string   `json:"horizon,omitempty"`
	Status          string   `json:"status,omitempty"`
	MinInvestment   *float64 `json:"minInvestment"`
	CompositionDate string   `json:"compositionDate,omitempty"`
	ReturnDay       *float64 `json:"returnDay"`
	ReturnMonth     *float64 `json:"returnMonth"`
	ReturnYTD       *float64 `json:"returnYtd"`
	Enriched        bool     `json:"enriched"`
}

// FundClassDetail is the single-record projection returned by the read API.
type FundClassDetail struct {
	FlattenedFundClass
	Composition []CompositionEntry `json:"composition"`
}

// FundClassFilter narrows a fund class listing. Empty fields do not filter.
type FundClassFilter struct {
	Currency   string
	IncomeType string
	Manager    string
	Enriched   *bool
}

// Match reports whether the summary satisfies the filter.
func (flt FundClassFilter) Match(s FundClassSummary) bool {
	if flt.Currency != "" && !strings.EqualFold(flt.Currency, s.Currency) {
		return false
	}
	if flt.IncomeType != "" && !strings.EqualFold(flt.IncomeType, s.IncomeType) {
		return false
	}
	if flt.Manager != "" && !strings.Contains(strings.ToUpper(s.Manager), strings.ToUpper(flt.Manager)) {
		return false
	}
	if flt.Enriched != nil && *flt.Enriched != s.Enriched {
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeFees(master, detail Fees) Fees {
	pick := func(a, b *float64) *float64 {
		if a != nil {
			return a
		}
		return b
	}
	return Fees{
		Entry:      pick(master.Entry, detail.Entry),
		Exit:       pick(master.Exit, detail.Exit),
		Transfer:   pick(master.Transfer, detail.Transfer),
		Management: pick(master.Management, detail.Management),
		Depository: pick(master.Depository, detail.Depository),
		Expenses:   pick(master.Expenses, detail.Expenses),
		Success:    firstNonEmpty(master.Success, detail.Success),
	}
}

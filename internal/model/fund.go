package model

import "time"

// Entity is a legal party attached to a fund, such as its manager or depository.
type Entity struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	TaxID string `json:"taxId,omitempty"`
}

// Classification is an upstream lookup value (income type, region, horizon...).
type Classification struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Fund is the top-level investment vehicle as published in the master list.
// It is owned by upstream and mirrored read-only.
type Fund struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CNVCode        string         `json:"cnvCode,omitempty"`
	CurrencyID     string         `json:"currencyId,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Manager        Entity         `json:"manager"`
	Depository     Entity         `json:"depository"`
	IncomeType     Classification `json:"incomeType"`
	Region         Classification `json:"region"`
	Benchmark      Classification `json:"benchmark"`
	Horizon        Classification `json:"horizon"`
	Duration       Classification `json:"duration"`
	FundType       Classification `json:"fundType"`
	Objective      string         `json:"objective,omitempty"`
	Status         string         `json:"status,omitempty"`
	SettlementDays string         `json:"settlementDays,omitempty"`
	InceptionDate  string         `json:"inceptionDate,omitempty"`
	Classes        []FundClass    `json:"classes,omitempty"`
}

// Fees is the fee schedule of a fund class, expressed in percent.
// A nil value means upstream did not publish it.
type Fees struct {
	Entry      *float64 `json:"entry"`
	Exit       *float64 `json:"exit"`
	Transfer   *float64 `json:"transfer"`
	Management *float64 `json:"management"`
	Depository *float64 `json:"depository"`
	Expenses   *float64 `json:"expenses"`
	Success    string   `json:"success,omitempty"`
}

// FundClass is a share class of a Fund and the unit of enrichment.
// Its primary key is the upstream class ID.
type FundClass struct {
	ID            string   `json:"id"`
	FundID        string   `json:"fundId"`
	Name          string   `json:"name"`
	CurrencyID    string   `json:"currencyId,omitempty"`
	ISIN          string   `json:"isin,omitempty"`
	Bloomberg     string   `json:"bloomberg,omitempty"`
	FIGI          string   `json:"figi,omitempty"`
	MinInvestment *float64 `json:"minInvestment"`
	Fees          Fees     `json:"fees"`

	// Enrichment, populated from the detail record.
	ReferenceDate   string      `json:"referenceDate,omitempty"`
	CompositionDate string      `json:"compositionDate,omitempty"`
	AUM             *float64    `json:"aum"`
	UnitValue       *float64    `json:"unitValue"`
	Performance     Performance `json:"performance"`
	LastSync        time.Time   `json:"lastSync"`
	RawDetail       string      `json:"-"`
}

// Enriched reports whether a detail record has ever been merged into the class.
func (c FundClass) Enriched() bool {
	return c.CompositionDate != "" || c.ReferenceDate != ""
}

// CompositionEntry is one holding of a fund class portfolio.
// Entries are replaced wholesale on every successful enrichment.
type CompositionEntry struct {
	Asset      string   `json:"asset"`
	Percentage *float64 `json:"percentage"`
	AssetType  string   `json:"type,omitempty"`
	Region     string   `json:"region,omitempty"`
	Quantity   *float64 `json:"quantity"`
	Amount     *float64 `json:"amount"`
	UnitPrice  *float64 `json:"unitPrice"`
	SpeciesID  string   `json:"speciesId,omitempty"`
	CurrencyID string   `json:"currencyId,omitempty"`
	Raw        string   `json:"-"`
}

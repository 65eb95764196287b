package model

// Detail is the enriched per-class record ("ficha") fetched from upstream.
// A nil *Detail means the class exists upstream but has no published detail yet.
type Detail struct {
	FundID          string
	ClassID         string
	ReferenceDate   string
	CompositionDate string
	AUM             *float64
	UnitValue       *float64
	Returns         map[string]PeriodReturn
	Composition     []CompositionEntry

	// Identifiers and fees from the detail "model" block. They fill gaps
	// left by the master list but never override it.
	ISIN          string
	Bloomberg     string
	CurrencyID    string
	MinInvestment *float64
	Fees          Fees

	Raw string
}

// Performance maps the upstream period keys onto the canonical period names.
func (d Detail) Performance() Performance {
	var p Performance
	for key, r := range d.Returns {
		p.Set(CanonicalPeriod(key), r)
	}
	return p
}

// CanonicalPeriod maps an upstream return key onto a Performance period name.
// Unknown keys are returned unchanged and land in Performance.Extra.
func CanonicalPeriod(key string) string {
	switch key {
	case "day", "1d":
		return PeriodDay
	case "month", "30d":
		return PeriodMonth
	case "year", "ytd", "anio":
		return PeriodYTD
	case "yearM1", "oneYear", "1y", "1a":
		return PeriodOneYear
	case "yearM3", "threeYears", "3y", "3a":
		return PeriodThreeYear
	case "yearM5", "fiveYears", "5y", "5a":
		return PeriodFiveYear
	}
	return key
}

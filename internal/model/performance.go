package model

// Period names used by Performance.
const (
	PeriodDay       = "day"
	PeriodMonth     = "month"
	PeriodYTD       = "ytd"
	PeriodOneYear   = "1y"
	PeriodThreeYear = "3y"
	PeriodFiveYear  = "5y"
)

// PeriodReturn is the return of a fund class over a named period.
// Rate is the annualized nominal rate (TNA) when upstream publishes it.
type PeriodReturn struct {
	Return *float64 `json:"return"`
	Rate   *float64 `json:"rate"`
	Date   string   `json:"date,omitempty"`
}

// Performance holds the named period returns of a class. It is overwritten
// wholesale on every sync. Other upstream periods are kept in Extra.
type Performance struct {
	Day       PeriodReturn            `json:"day"`
	Month     PeriodReturn            `json:"month"`
	YTD       PeriodReturn            `json:"ytd"`
	OneYear   PeriodReturn            `json:"1y"`
	ThreeYear PeriodReturn            `json:"3y"`
	FiveYear  PeriodReturn            `json:"5y"`
	Extra     map[string]PeriodReturn `json:"extra,omitempty"`
}

// Period returns the named period and whether the name is known.
func (p Performance) Period(name string) (PeriodReturn, bool) {
	switch name {
	case PeriodDay:
		return p.Day, true
	case PeriodMonth:
		return p.Month, true
	case PeriodYTD:
		return p.YTD, true
	case PeriodOneYear:
		return p.OneYear, true
	case PeriodThreeYear:
		return p.ThreeYear, true
	case PeriodFiveYear:
		return p.FiveYear, true
	}
	r, ok := p.Extra[name]
	return r, ok
}

// Set stores r under the named period, falling back to Extra for unknown names.
func (p *Performance) Set(name string, r PeriodReturn) {
	switch name {
	case PeriodDay:
		p.Day = r
	case PeriodMonth:
		p.Month = r
	case PeriodYTD:
		p.YTD = r
	case PeriodOneYear:
		p.OneYear = r
	case PeriodThreeYear:
		p.ThreeYear = r
	case PeriodFiveYear:
		p.FiveYear = r
	default:
		if p.Extra == nil {
			p.Extra = make(map[string]PeriodReturn)
		}
		p.Extra[name] = r
	}
}

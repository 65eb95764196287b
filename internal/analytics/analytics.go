// Package analytics aggregates stored compositions into market-wide figures:
// the most held assets, the asset class mix and a manager ranking.
package analytics

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fci-sync/internal/model"
)

const (
	// TopAssets is the length of both asset rankings.
	TopAssets = 20
	// TopManagers is the length of the manager ranking.
	TopManagers = 15

	unknownManager = "S/D"
)

var (
	liquidityMarkers = []string{"PZO FI", "CTA CTE", "AHO", "CAU", "EFEC"}
	fixedMarkers     = []string{"BONO", "LETRA", "ON ", "TIT", "TZ"}
	equityMarkers    = []string{"ACC", "CED", "YPF", "PAMPA"}
)

// Classify buckets an asset by keywords in its upstream name. The first
// matching bucket wins, in the order liquidity, fixed income, equity.
func Classify(asset string) model.AssetCategory {
	name := strings.ToUpper(asset)
	switch {
	case containsAny(name, liquidityMarkers):
		return model.CategoryLiquidity
	case containsAny(name, fixedMarkers):
		return model.CategoryFixed
	case containsAny(name, equityMarkers):
		return model.CategoryEquity
	default:
		return model.CategoryOther
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

type assetAcc struct {
	stat   model.AssetStat
	weight decimal.Decimal
}

type managerAcc struct {
	name      string
	classes   int
	liquidity decimal.Decimal
}

// Aggregate builds the report from holdings grouped by class, as returned by
// the store. totalFunds is the number of stored classes, with or without
// composition. A missing percentage counts as zero weight.
func Aggregate(holdings []model.Holding, totalFunds int) model.Analytics {
	var (
		assets      []*assetAcc
		managers    []*managerAcc
		current     *managerAcc
		analyzed    int
		lastClassID string
	)
	assetIndex := map[string]*assetAcc{}
	managerIdx := map[string]*managerAcc{}
	mix := map[model.AssetCategory]decimal.Decimal{}

	for i, h := range holdings {
		if i == 0 || h.ClassID != lastClassID {
			lastClassID = h.ClassID
			analyzed++

			mgr := strings.TrimSpace(h.Manager)
			if mgr == "" {
				mgr = unknownManager
			}
			current = managerIdx[mgr]
			if current == nil {
				current = &managerAcc{name: mgr}
				managerIdx[mgr] = current
				managers = append(managers, current)
			}
			current.classes++
		}

		name := strings.TrimSpace(h.Asset)
		pct := decimal.Zero
		if h.Percentage != nil {
			pct = decimal.NewFromFloat(*h.Percentage)
		}

		a := assetIndex[name]
		if a == nil {
			a = &assetAcc{stat: model.AssetStat{Name: name, Funds: []model.AssetHolding{}}}
			assetIndex[name] = a
			assets = append(assets, a)
		}
		a.stat.Frequency++
		a.weight = a.weight.Add(pct)
		a.stat.Funds = append(a.stat.Funds, model.AssetHolding{Name: h.ClassName, Pct: h.Percentage})

		cat := Classify(name)
		mix[cat] = mix[cat].Add(pct)
		if cat == model.CategoryLiquidity {
			current.liquidity = current.liquidity.Add(pct)
		}
	}

	stats := make([]model.AssetStat, len(assets))
	for i, a := range assets {
		a.stat.TotalWeight = a.weight.InexactFloat64()
		stats[i] = a.stat
	}

	byFrequency := slices.Clone(stats)
	slices.SortStableFunc(byFrequency, func(a, b model.AssetStat) int { return b.Frequency - a.Frequency })

	byWeight := slices.Clone(stats)
	slices.SortStableFunc(byWeight, func(a, b model.AssetStat) int {
		return assetIndex[b.Name].weight.Cmp(assetIndex[a.Name].weight)
	})

	marketMix := normalizeMix(mix)

	ranking := make([]model.ManagerStat, len(managers))
	for i, m := range managers {
		ranking[i] = model.ManagerStat{
			Name:         m.name,
			Funds:        m.classes,
			AvgLiquidity: m.liquidity.Div(decimal.NewFromInt(int64(m.classes))).InexactFloat64(),
		}
	}
	slices.SortStableFunc(ranking, func(a, b model.ManagerStat) int { return b.Funds - a.Funds })

	return model.Analytics{
		Summary: model.AnalyticsSummary{
			TotalFunds:      totalFunds,
			AnalyzedFunds:   analyzed,
			MarketLiquidity: marketMix[model.CategoryLiquidity],
		},
		TopAssetsByFrequency: head(byFrequency, TopAssets),
		TopAssetsByWeight:    head(byWeight, TopAssets),
		MarketMix:            marketMix,
		ManagerRanking:       head(ranking, TopManagers),
	}
}

// normalizeMix scales the category weights to sum to 100. With no weight at
// all every category is zero.
func normalizeMix(mix map[model.AssetCategory]decimal.Decimal) map[model.AssetCategory]float64 {
	total := decimal.Zero
	for _, v := range mix {
		total = total.Add(v)
	}
	if total.IsZero() {
		total = decimal.NewFromInt(1)
	}

	hundred := decimal.NewFromInt(100)
	out := make(map[model.AssetCategory]float64, len(model.AssetCategories))
	for _, cat := range model.AssetCategories {
		out[cat] = mix[cat].Div(total).Mul(hundred).InexactFloat64()
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

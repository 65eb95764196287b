package model

// AssetCategory is the coarse bucket a holding is classified into.
type AssetCategory string

const (
	CategoryLiquidity AssetCategory = "LIQUIDEZ"
	CategoryFixed     AssetCategory = "RENTA_FIJA"
	CategoryEquity    AssetCategory = "RENTA_VARIABLE"
	CategoryOther     AssetCategory = "OTROS"
)

// AssetCategories lists every category in report order.
var AssetCategories = []AssetCategory{CategoryLiquidity, CategoryFixed, CategoryEquity, CategoryOther}

// Holding is one composition row joined with its class, as read for analytics.
type Holding struct {
	ClassID    string
	ClassName  string
	Manager    string
	Asset      string
	Percentage *float64
}

// Analytics is the market-wide aggregation over stored compositions.
type Analytics struct {
	Summary              AnalyticsSummary          `json:"summary"`
	TopAssetsByFrequency []AssetStat               `json:"topAssetsByFrequency"`
	TopAssetsByWeight    []AssetStat               `json:"topAssetsByWeight"`
	MarketMix            map[AssetCategory]float64 `json:"marketMix"`
	ManagerRanking       []ManagerStat             `json:"managerRanking"`
}

// AnalyticsSummary holds the headline numbers.
type AnalyticsSummary struct {
	TotalFunds      int     `json:"totalFunds"`
	AnalyzedFunds   int     `json:"analyzedFunds"`
	MarketLiquidity float64 `json:"marketLiquidity"`
}

// AssetStat aggregates one asset across every class holding it.
type AssetStat struct {
	Name        string         `json:"name"`
	Frequency   int            `json:"frequency"`
	TotalWeight float64        `json:"totalWeight"`
	Funds       []AssetHolding `json:"funds"`
}

// AssetHolding is one class holding an asset.
type AssetHolding struct {
	Name string   `json:"nombre"`
	Pct  *float64 `json:"pct"`
}

// ManagerStat ranks a manager by the number of analyzed classes.
type ManagerStat struct {
	Name         string  `json:"name"`
	Funds        int     `json:"funds"`
	AvgLiquidity float64 `json:"avgLiquidity"`
}

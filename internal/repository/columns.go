package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/fci-sync/internal/model"
)

// Column lists shared by both adapters. Queries are written with '?'
// placeholders; the PostgreSQL adapter rebinds them.
var (
	masterColumns = []string{
		"fund_id", "name", "fund_name", "cnv_code", "isin", "bloomberg", "figi",
		"currency_id", "currency_name", "min_investment",
		"fee_entry", "fee_exit", "fee_transfer", "fee_mgmt", "fee_depo", "fee_expenses", "fee_success",
		"manager_name", "manager_cuit", "depository_name", "depository_cuit",
		"income_type_id", "income_type_name", "region_name", "benchmark_name",
		"horizon_name", "duration_name", "fund_type_name",
		"objective", "status", "settlement_days", "inception_date",
	}

	enrichmentColumns = []string{
		"aum", "vcp",
		"return_day", "tna_day", "return_month", "tna_month", "return_ytd", "tna_ytd",
		"return_1y", "return_3y", "return_5y", "returns_json",
		"reference_date", "composition_date", "last_sync", "full_json_ficha",
	}

	compositionColumns = []string{
		"position", "asset_name", "percentage", "type", "region",
		"quantity", "amount", "unit_price", "species_id", "currency_id", "raw_json",
	}
)

func allFundColumns() []string {
	cols := make([]string, 0, 1+len(masterColumns)+len(enrichmentColumns))
	cols = append(cols, "id")
	cols = append(cols, masterColumns...)
	return append(cols, enrichmentColumns...)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func updateSet(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = excluded." + c
	}
	return strings.Join(parts, ", ")
}

var (
	selectFundSQL = "SELECT " + strings.Join(allFundColumns(), ", ") + " FROM funds"

	// List queries skip the raw detail payload.
	listFundSQL = "SELECT " + strings.Join(allFundColumns()[:len(allFundColumns())-1], ", ") +
		", NULL AS full_json_ficha FROM funds"

	upsertFundSQL = "INSERT INTO funds (" + strings.Join(allFundColumns(), ", ") + ") VALUES (" +
		placeholders(len(allFundColumns())) + ") ON CONFLICT (id) DO UPDATE SET " +
		updateSet(append(append([]string{}, masterColumns...), enrichmentColumns...))

	seedFundSQL = "INSERT INTO funds (id, " + strings.Join(masterColumns, ", ") + ") VALUES (" +
		placeholders(1+len(masterColumns)) + ") ON CONFLICT (id) DO UPDATE SET " +
		updateSet(masterColumns)

	insertCompositionSQL = "INSERT INTO composition (class_id, " + strings.Join(compositionColumns, ", ") +
		") VALUES (" + placeholders(1+len(compositionColumns)) + ")"

	selectCompositionSQL = "SELECT " + strings.Join(compositionColumns, ", ") +
		" FROM composition WHERE class_id = ? ORDER BY position, id"

	deleteCompositionSQL = "DELETE FROM composition WHERE class_id = ?"
	deleteFundSQL        = "DELETE FROM funds WHERE id = ?"

	selectHoldingsSQL = "SELECT c.class_id, f.name, f.manager_name, c.asset_name, c.percentage" +
		" FROM composition c JOIN funds f ON f.id = c.class_id ORDER BY c.class_id, c.position, c.id"

	countFundsSQL    = "SELECT COUNT(*) FROM funds"
	countEnrichedSQL = "SELECT COUNT(DISTINCT class_id) FROM composition"
)

// rebind rewrites '?' placeholders into PostgreSQL's $n form.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// listQuery builds the filtered list query and its arguments.
func listQuery(filter model.FundClassFilter) (string, []any) {
	var where []string
	var args []any

	if filter.Currency != "" {
		where = append(where, "(UPPER(COALESCE(currency_name, '')) = UPPER(?) OR UPPER(COALESCE(currency_id, '')) = UPPER(?))")
		args = append(args, filter.Currency, filter.Currency)
	}
	if filter.IncomeType != "" {
		where = append(where, "UPPER(COALESCE(income_type_name, '')) = UPPER(?)")
		args = append(args, filter.IncomeType)
	}
	if filter.Manager != "" {
		where = append(where, "UPPER(COALESCE(manager_name, '')) LIKE UPPER(?)")
		args = append(args, "%"+filter.Manager+"%")
	}
	if filter.Enriched != nil {
		enriched := "(COALESCE(composition_date, '') <> '' OR COALESCE(reference_date, '') <> '')"
		if *filter.Enriched {
			where = append(where, enriched)
		} else {
			where = append(where, "NOT "+enriched)
		}
	}

	query := listFundSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY name, id", args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func fromNullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func masterArgs(row model.FlattenedFundClass) []any {
	f, c := row.Fund, row.Class
	currency := f.Currency
	return []any{
		nullString(firstNonEmpty(c.FundID, f.ID)),
		nullString(c.Name),
		nullString(f.Name),
		nullString(f.CNVCode),
		nullString(c.ISIN),
		nullString(c.Bloomberg),
		nullString(c.FIGI),
		nullString(firstNonEmpty(c.CurrencyID, f.CurrencyID)),
		nullString(currency),
		nullFloat(c.MinInvestment),
		nullFloat(c.Fees.Entry),
		nullFloat(c.Fees.Exit),
		nullFloat(c.Fees.Transfer),
		nullFloat(c.Fees.Management),
		nullFloat(c.Fees.Depository),
		nullFloat(c.Fees.Expenses),
		nullString(c.Fees.Success),
		nullString(f.Manager.Name),
		nullString(f.Manager.TaxID),
		nullString(f.Depository.Name),
		nullString(f.Depository.TaxID),
		nullString(f.IncomeType.ID),
		nullString(f.IncomeType.Name),
		nullString(f.Region.Name),
		nullString(f.Benchmark.Name),
		nullString(f.Horizon.Name),
		nullString(f.Duration.Name),
		nullString(f.FundType.Name),
		nullString(f.Objective),
		nullString(f.Status),
		nullString(f.SettlementDays),
		nullString(f.InceptionDate),
	}
}

func enrichmentArgs(c model.FundClass) ([]any, error) {
	perf := c.Performance
	returnsJSON, err := json.Marshal(perf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode returns: %w", err)
	}
	var lastSync any
	if !c.LastSync.IsZero() {
		lastSync = c.LastSync.UTC().Format(time.RFC3339Nano)
	}
	return []any{
		nullFloat(c.AUM),
		nullFloat(c.UnitValue),
		nullFloat(perf.Day.Return),
		nullFloat(perf.Day.Rate),
		nullFloat(perf.Month.Return),
		nullFloat(perf.Month.Rate),
		nullFloat(perf.YTD.Return),
		nullFloat(perf.YTD.Rate),
		nullFloat(perf.OneYear.Return),
		nullFloat(perf.ThreeYear.Return),
		nullFloat(perf.FiveYear.Return),
		string(returnsJSON),
		nullString(c.ReferenceDate),
		nullString(c.CompositionDate),
		lastSync,
		nullString(c.RawDetail),
	}, nil
}

func upsertArgs(row model.FlattenedFundClass) ([]any, error) {
	enrichment, err := enrichmentArgs(row.Class)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, 1+len(masterColumns)+len(enrichmentColumns))
	args = append(args, row.Class.ID)
	args = append(args, masterArgs(row)...)
	return append(args, enrichment...), nil
}

func seedArgs(row model.FlattenedFundClass) []any {
	return append([]any{row.Class.ID}, masterArgs(row)...)
}

func compositionArgs(classID string, position int, e model.CompositionEntry) []any {
	return []any{
		classID,
		position,
		nullString(e.Asset),
		nullFloat(e.Percentage),
		nullString(e.AssetType),
		nullString(e.Region),
		nullFloat(e.Quantity),
		nullFloat(e.Amount),
		nullFloat(e.UnitPrice),
		nullString(e.SpeciesID),
		nullString(e.CurrencyID),
		nullString(e.Raw),
	}
}

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// fundRecord mirrors one funds row in nullable form.
type fundRecord struct {
	id                                                            string
	fundID, name, fundName, cnvCode, isin, bloomberg, figi        sql.NullString
	currencyID, currencyName                                      sql.NullString
	minInvestment                                                 sql.NullFloat64
	feeEntry, feeExit, feeTransfer, feeMgmt, feeDepo, feeExpenses sql.NullFloat64
	feeSuccess                                                    sql.NullString
	managerName, managerCUIT, depositoryName, depositoryCUIT      sql.NullString
	incomeTypeID, incomeTypeName, regionName, benchmarkName       sql.NullString
	horizonName, durationName, fundTypeName                       sql.NullString
	objective, status, settlementDays, inceptionDate              sql.NullString
	aum, vcp                                                      sql.NullFloat64
	returnDay, tnaDay, returnMonth, tnaMonth, returnYTD, tnaYTD   sql.NullFloat64
	return1Y, return3Y, return5Y                                  sql.NullFloat64
	returnsJSON, referenceDate, compositionDate, lastSync         sql.NullString
	fullJSON                                                      sql.NullString
}

func scanFundClass(s rowScanner) (*model.FlattenedFundClass, error) {
	var r fundRecord
	err := s.Scan(
		&r.id,
		&r.fundID, &r.name, &r.fundName, &r.cnvCode, &r.isin, &r.bloomberg, &r.figi,
		&r.currencyID, &r.currencyName, &r.minInvestment,
		&r.feeEntry, &r.feeExit, &r.feeTransfer, &r.feeMgmt, &r.feeDepo, &r.feeExpenses, &r.feeSuccess,
		&r.managerName, &r.managerCUIT, &r.depositoryName, &r.depositoryCUIT,
		&r.incomeTypeID, &r.incomeTypeName, &r.regionName, &r.benchmarkName,
		&r.horizonName, &r.durationName, &r.fundTypeName,
		&r.objective, &r.status, &r.settlementDays, &r.inceptionDate,
		&r.aum, &r.vcp,
		&r.returnDay, &r.tnaDay, &r.returnMonth, &r.tnaMonth, &r.returnYTD, &r.tnaYTD,
		&r.return1Y, &r.return3Y, &r.return5Y, &r.returnsJSON,
		&r.referenceDate, &r.compositionDate, &r.lastSync, &r.fullJSON,
	)
	if err != nil {
		return nil, err
	}
	return r.toModel(), nil
}

func (r fundRecord) toModel() *model.FlattenedFundClass {
	fundID := fromNullString(r.fundID)
	f := model.Fund{
		ID:             fundID,
		Name:           fromNullString(r.fundName),
		CNVCode:        fromNullString(r.cnvCode),
		CurrencyID:     fromNullString(r.currencyID),
		Currency:       fromNullString(r.currencyName),
		Manager:        model.Entity{Name: fromNullString(r.managerName), TaxID: fromNullString(r.managerCUIT)},
		Depository:     model.Entity{Name: fromNullString(r.depositoryName), TaxID: fromNullString(r.depositoryCUIT)},
		IncomeType:     model.Classification{ID: fromNullString(r.incomeTypeID), Name: fromNullString(r.incomeTypeName)},
		Region:         model.Classification{Name: fromNullString(r.regionName)},
		Benchmark:      model.Classification{Name: fromNullString(r.benchmarkName)},
		Horizon:        model.Classification{Name: fromNullString(r.horizonName)},
		Duration:       model.Classification{Name: fromNullString(r.durationName)},
		FundType:       model.Classification{Name: fromNullString(r.fundTypeName)},
		Objective:      fromNullString(r.objective),
		Status:         fromNullString(r.status),
		SettlementDays: fromNullString(r.settlementDays),
		InceptionDate:  fromNullString(r.inceptionDate),
	}

	c := model.FundClass{
		ID:            r.id,
		FundID:        fundID,
		Name:          fromNullString(r.name),
		CurrencyID:    fromNullString(r.currencyID),
		ISIN:          fromNullString(r.isin),
		Bloomberg:     fromNullString(r.bloomberg),
		FIGI:          fromNullString(r.figi),
		MinInvestment: fromNullFloat(r.minInvestment),
		Fees: model.Fees{
			Entry:      fromNullFloat(r.feeEntry),
			Exit:       fromNullFloat(r.feeExit),
			Transfer:   fromNullFloat(r.feeTransfer),
			Management: fromNullFloat(r.feeMgmt),
			Depository: fromNullFloat(r.feeDepo),
			Expenses:   fromNullFloat(r.feeExpenses),
			Success:    fromNullString(r.feeSuccess),
		},
		ReferenceDate:   fromNullString(r.referenceDate),
		CompositionDate: fromNullString(r.compositionDate),
		AUM:             fromNullFloat(r.aum),
		UnitValue:       fromNullFloat(r.vcp),
		RawDetail:       fromNullString(r.fullJSON),
	}

	if ts := fromNullString(r.lastSync); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.LastSync = t
		}
	}

	// returns_json is authoritative; the flat columns exist for SQL consumers.
	if raw := fromNullString(r.returnsJSON); raw == "" || json.Unmarshal([]byte(raw), &c.Performance) != nil {
		c.Performance = model.Performance{
			Day:       model.PeriodReturn{Return: fromNullFloat(r.returnDay), Rate: fromNullFloat(r.tnaDay)},
			Month:     model.PeriodReturn{Return: fromNullFloat(r.returnMonth), Rate: fromNullFloat(r.tnaMonth)},
			YTD:       model.PeriodReturn{Return: fromNullFloat(r.returnYTD), Rate: fromNullFloat(r.tnaYTD)},
			OneYear:   model.PeriodReturn{Return: fromNullFloat(r.return1Y)},
			ThreeYear: model.PeriodReturn{Return: fromNullFloat(r.return3Y)},
			FiveYear:  model.PeriodReturn{Return: fromNullFloat(r.return5Y)},
		}
	}

	return &model.FlattenedFundClass{Fund: f, Class: c}
}

func scanHolding(s rowScanner) (model.Holding, error) {
	var (
		classID               string
		className, mgr, asset sql.NullString
		percentage            sql.NullFloat64
	)
	if err := s.Scan(&classID, &className, &mgr, &asset, &percentage); err != nil {
		return model.Holding{}, err
	}
	return model.Holding{
		ClassID:    classID,
		ClassName:  fromNullString(className),
		Manager:    fromNullString(mgr),
		Asset:      fromNullString(asset),
		Percentage: fromNullFloat(percentage),
	}, nil
}

func scanComposition(s rowScanner) (model.CompositionEntry, error) {
	var (
		position                                         int
		asset, assetType, region, species, currency, raw sql.NullString
		percentage, quantity, amount, unitPrice          sql.NullFloat64
	)
	if err := s.Scan(&position, &asset, &percentage, &assetType, &region, &quantity, &amount, &unitPrice, &species, &currency, &raw); err != nil {
		return model.CompositionEntry{}, err
	}
	return model.CompositionEntry{
		Asset:      fromNullString(asset),
		Percentage: fromNullFloat(percentage),
		AssetType:  fromNullString(assetType),
		Region:     fromNullString(region),
		Quantity:   fromNullFloat(quantity),
		Amount:     fromNullFloat(amount),
		UnitPrice:  fromNullFloat(unitPrice),
		SpeciesID:  fromNullString(species),
		CurrencyID: fromNullString(currency),
		Raw:        fromNullString(raw),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package cafci

import (
	"encoding/json"

	"github.com/ndewijer/fci-sync/internal/model"
)

// ToFunds converts master list funds into domain funds, keeping source order.
// Funds without an ID are dropped since they cannot be addressed upstream.
func ToFunds(raw []Fund) []model.Fund {
	funds := make([]model.Fund, 0, len(raw))
	for _, rf := range raw {
		if rf.ID == "" {
			continue
		}
		f := model.Fund{
			ID:             rf.ID.String(),
			Name:           rf.Nombre,
			CNVCode:        rf.CodigoCNV.String(),
			CurrencyID:     rf.MonedaID.String(),
			Currency:       currencyCode(rf.Moneda),
			Manager:        toEntity(rf.Gerente, rf.SociedadGerente),
			Depository:     toEntity(rf.Depositaria, rf.SociedadDepositaria),
			IncomeType:     toClassification(rf.TipoRenta),
			Region:         toClassification(rf.Region),
			Benchmark:      toClassification(rf.Benchmark),
			Horizon:        toClassification(rf.Horizonte),
			Duration:       toClassification(rf.Duration),
			FundType:       toClassification(rf.TipoFondo),
			Objective:      rf.Objetivo,
			Status:         rf.Estado.String(),
			SettlementDays: rf.DiasLiquidacion.String(),
			InceptionDate:  rf.Inicio.String(),
		}
		if f.IncomeType.ID == "" {
			f.IncomeType.ID = rf.TipoRentaID.String()
		}

		for _, rc := range rf.Classes() {
			if rc.ID == "" {
				continue
			}
			f.Classes = append(f.Classes, toFundClass(f.ID, rc))
		}
		funds = append(funds, f)
	}
	return funds
}

func toFundClass(fundID string, rc Class) model.FundClass {
	return model.FundClass{
		ID:            rc.ID.String(),
		FundID:        fundID,
		Name:          rc.Nombre,
		CurrencyID:    rc.MonedaID.String(),
		ISIN:          rc.TickerISIN.String(),
		Bloomberg:     rc.TickerBloomberg.String(),
		FIGI:          rc.TickerFIGI.String(),
		MinInvestment: rc.InversionMinima.Number(),
		Fees:          toFees(rc),
	}
}

func toFees(rc Class) model.Fees {
	return model.Fees{
		Entry:      rc.HonorarioIngreso.Number(),
		Exit:       rc.HonorarioRescate.Number(),
		Transfer:   rc.HonorarioTransferencia.Number(),
		Management: rc.HonorarioAdministracionGerente.Number(),
		Depository: rc.HonorarioAdministracionDepositaria.Number(),
		Expenses:   rc.GastoOrdinarioGestion.Number(),
		Success:    rc.HonorarioExito.String(),
	}
}

// toDetail converts a decoded detail payload. raw is the undecoded data block,
// kept verbatim for auditing.
func toDetail(fundID, classID string, d DetailData, raw json.RawMessage) model.Detail {
	daily := d.Info.Diaria

	refDate := daily.ReferenceDay.String()
	if refDate == "" {
		refDate = daily.Actual.ReferenceDay.String()
	}
	returns := daily.Rendimientos
	if len(returns) == 0 {
		returns = daily.Actual.Rendimientos
	}

	detail := model.Detail{
		FundID:          fundID,
		ClassID:         classID,
		ReferenceDate:   refDate,
		CompositionDate: d.Info.Semanal.FechaDatos.String(),
		AUM:             daily.Actual.Patrimonio.Number(),
		UnitValue:       daily.Actual.VCPUnitario.Number(),
		Raw:             string(raw),
	}

	if len(returns) > 0 {
		detail.Returns = make(map[string]model.PeriodReturn, len(returns))
		for key, r := range returns {
			detail.Returns[key] = model.PeriodReturn{
				Return: r.Rendimiento.Number(),
				Rate:   r.TNA.Number(),
				Date:   r.Fecha.String(),
			}
		}
	}

	detail.Composition = make([]model.CompositionEntry, 0, len(d.Info.Semanal.Carteras))
	for _, rawHolding := range d.Info.Semanal.Carteras {
		var h Holding
		if err := json.Unmarshal(rawHolding, &h); err != nil {
			// A single undecodable holding is kept as raw text only.
			detail.Composition = append(detail.Composition, model.CompositionEntry{Raw: string(rawHolding)})
			continue
		}
		detail.Composition = append(detail.Composition, toComposition(h, rawHolding))
	}

	if m := d.Model; m != nil {
		detail.ISIN = m.TickerISIN.String()
		detail.Bloomberg = m.TickerBloomberg.String()
		detail.CurrencyID = m.MonedaID.String()
		detail.MinInvestment = m.InversionMinima.Number()
		detail.Fees = toFees(*m)
	}
	return detail
}

func toComposition(h Holding, raw json.RawMessage) model.CompositionEntry {
	assetType := h.TipoActivoPadre.String()
	if assetType == "" && h.TipoActivo != nil {
		assetType = h.TipoActivo.Nombre
	}
	var region string
	if h.Region != nil {
		region = h.Region.Nombre
	}
	return model.CompositionEntry{
		Asset:      h.NombreActivo,
		Percentage: h.Share.Number(),
		AssetType:  assetType,
		Region:     region,
		Quantity:   h.Cantidad.Number(),
		Amount:     h.Monto.Number(),
		UnitPrice:  h.VCPUnitario.Number(),
		SpeciesID:  h.EspecieID.String(),
		CurrencyID: h.MonedaID.String(),
		Raw:        string(raw),
	}
}

func toEntity(primary, fallback *Party) model.Entity {
	p := primary
	if p == nil || p.Nombre == "" {
		p = fallback
	}
	if p == nil {
		return model.Entity{}
	}
	return model.Entity{ID: p.ID.String(), Name: p.Nombre, TaxID: p.CUIT.String()}
}

func toClassification(l *Lookup) model.Classification {
	if l == nil {
		return model.Classification{}
	}
	return model.Classification{ID: l.ID.String(), Name: l.Nombre}
}

func currencyCode(c *Currency) string {
	if c == nil {
		return ""
	}
	if c.CodigoCafci != "" {
		return c.CodigoCafci
	}
	return c.Nombre
}

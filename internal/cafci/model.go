package cafci

import (
	"encoding/json"

	"github.com/ndewijer/fci-sync/internal/normalize"
)

// MasterResponse is the raw envelope of the bulk fund list endpoint.
// Data is kept as raw messages so that a structurally broken element can be
// told apart from a missing envelope.
type MasterResponse struct {
	Data json.RawMessage `json:"data"`
}

// Fund is a fund as published in the master list, with its class stubs.
type Fund struct {
	ID                  normalize.Flex `json:"id"`
	Nombre              string         `json:"nombre"`
	CodigoCNV           normalize.Flex `json:"codigoCNV"`
	Objetivo            string         `json:"objetivo"`
	Estado              normalize.Flex `json:"estado"`
	DiasLiquidacion     normalize.Flex `json:"diasLiquidacion"`
	Inicio              normalize.Flex `json:"inicio"`
	MonedaID            normalize.Flex `json:"monedaId"`
	Moneda              *Currency      `json:"moneda"`
	TipoRentaID         normalize.Flex `json:"tipoRentaId"`
	Gerente             *Party         `json:"gerente"`
	Depositaria         *Party         `json:"depositaria"`
	SociedadGerente     *Party         `json:"sociedadGerente"`
	SociedadDepositaria *Party         `json:"sociedadDepositaria"`
	TipoRenta           *Lookup        `json:"tipoRenta"`
	Region              *Lookup        `json:"region"`
	Benchmark           *Lookup        `json:"benchmark"`
	Horizonte           *Lookup        `json:"horizonte"`
	Duration            *Lookup        `json:"duration"`
	TipoFondo           *Lookup        `json:"tipoFondo"`
	ClaseFondos         []Class        `json:"clase_fondos"`
	ClaseFondosAlt      []Class        `json:"claseFondos"`
}

// Classes returns the class stubs under either key upstream uses.
func (f Fund) Classes() []Class {
	if len(f.ClaseFondos) > 0 {
		return f.ClaseFondos
	}
	return f.ClaseFondosAlt
}

// Class is a share class stub from the master list, or the "model" block of a detail record.
type Class struct {
	ID                                 normalize.Flex `json:"id"`
	FondoID                            normalize.Flex `json:"fondoId"`
	Nombre                             string         `json:"nombre"`
	TickerISIN                         normalize.Flex `json:"tickerISIN"`
	TickerBloomberg                    normalize.Flex `json:"tickerBloomberg"`
	TickerFIGI                         normalize.Flex `json:"tickerFIGI"`
	MonedaID                           normalize.Flex `json:"monedaId"`
	Moneda                             *Currency      `json:"moneda"`
	InversionMinima                    normalize.Flex `json:"inversionMinima"`
	HonorarioIngreso                   normalize.Flex `json:"honorarioIngreso"`
	HonorarioRescate                   normalize.Flex `json:"honorarioRescate"`
	HonorarioTransferencia             normalize.Flex `json:"honorarioTransferencia"`
	HonorarioAdministracionGerente     normalize.Flex `json:"honorarioAdministracionGerente"`
	HonorarioAdministracionDepositaria normalize.Flex `json:"honorarioAdministracionDepositaria"`
	GastoOrdinarioGestion              normalize.Flex `json:"gastoOrdinarioGestion"`
	HonorarioExito                     normalize.Flex `json:"honorarioExito"`
}

// Party is a manager or depository company.
type Party struct {
	ID     normalize.Flex `json:"id"`
	Nombre string         `json:"nombre"`
	CUIT   normalize.Flex `json:"cuit"`
}

// Lookup is an upstream classification value.
type Lookup struct {
	ID     normalize.Flex `json:"id"`
	Nombre string         `json:"nombre"`
}

// Currency is the upstream currency object.
type Currency struct {
	ID          normalize.Flex `json:"id"`
	Nombre      string         `json:"nombre"`
	CodigoCafci string         `json:"codigoCafci"`
}

// DetailResponse is the raw envelope of the per-class detail ("ficha") endpoint.
type DetailResponse struct {
	Data json.RawMessage `json:"data"`
}

// DetailData is the content of DetailResponse.Data.
type DetailData struct {
	Info  DetailInfo `json:"info"`
	Model *Class     `json:"model"`
}

// DetailInfo groups the daily and weekly snapshots.
type DetailInfo struct {
	Diaria  Daily  `json:"diaria"`
	Semanal Weekly `json:"semanal"`
}

// Daily is the daily snapshot: freshness date, valuation and period returns.
type Daily struct {
	ReferenceDay normalize.Flex       `json:"referenceDay"`
	Fecha        normalize.Flex       `json:"fecha"`
	Actual       DailyActual          `json:"actual"`
	Rendimientos map[string]RawReturn `json:"rendimientos"`
}

// DailyActual is the current valuation. Some payloads nest the reference day
// and returns here instead of directly under Daily.
type DailyActual struct {
	Patrimonio   normalize.Flex       `json:"patrimonio"`
	VCPUnitario  normalize.Flex       `json:"vcpUnitario"`
	ReferenceDay normalize.Flex       `json:"referenceDay"`
	Rendimientos map[string]RawReturn `json:"rendimientos"`
}

// RawReturn is one period return.
type RawReturn struct {
	Rendimiento normalize.Flex `json:"rendimiento"`
	TNA         normalize.Flex `json:"tna"`
	Fecha       normalize.Flex `json:"fecha"`
}

// Weekly is the weekly portfolio snapshot.
type Weekly struct {
	FechaDatos normalize.Flex    `json:"fechaDatos"`
	Carteras   []json.RawMessage `json:"carteras"`
}

// Holding is one entry of Weekly.Carteras.
type Holding struct {
	NombreActivo    string         `json:"nombreActivo"`
	Share           normalize.Flex `json:"share"`
	TipoActivoPadre normalize.Flex `json:"tipoActivoPadre"`
	TipoActivo      *Lookup        `json:"tipoActivo"`
	Region          *Lookup        `json:"region"`
	Cantidad        normalize.Flex `json:"cantidad"`
	Monto           normalize.Flex `json:"monto"`
	VCPUnitario     normalize.Flex `json:"vcpUnitario"`
	EspecieID       normalize.Flex `json:"especieId"`
	MonedaID        normalize.Flex `json:"monedaId"`
}

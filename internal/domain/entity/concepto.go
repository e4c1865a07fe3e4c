package entity

import "github.com/shopspring/decimal"

// Tipos de impuesto aplicado a un concepto.
const (
	ImpuestoTraslado  = "TRASLADO"
	ImpuestoRetencion = "RETENCION"
)

// Concepto representa una línea (partida) del comprobante.
// Importe = Cantidad × ValorUnitario − Descuento.
type Concepto struct {
	ID        string
	InvoiceID string

	ClaveProdServ   string // c_ClaveProdServ (8 dígitos)
	NoIdentificacion string // SKU interno (opcional)
	ClaveUnidad     string // c_ClaveUnidad (H87, E48, ...)
	Unidad          string // Texto libre (opcional)
	Descripcion     string

	Cantidad      decimal.Decimal
	ValorUnitario decimal.Decimal
	Descuento     decimal.Decimal
	Importe       decimal.Decimal

	ObjetoImp string // c_ObjetoImp: 01 no objeto, 02 sí objeto, 03 sí objeto no desglosado

	Impuestos []ConceptoImpuesto
}

// ConceptoImpuesto impuesto trasladado o retenido a nivel de concepto.
// Importe = Base × TasaOCuota para TipoFactor "Tasa".
type ConceptoImpuesto struct {
	ID         string
	ConceptoID string

	Tipo       string          // TRASLADO | RETENCION
	Base       decimal.Decimal
	Impuesto   string          // c_Impuesto: 001 ISR, 002 IVA, 003 IEPS
	TipoFactor string          // Tasa | Cuota | Exento
	TasaOCuota decimal.Decimal // 6 decimales (ej. 0.160000); sin valor si Exento
	Importe    decimal.Decimal // Sin valor si Exento
}

// Exento reporta si el impuesto es de tipo factor Exento (sin tasa ni importe).
func (ci ConceptoImpuesto) Exento() bool {
	return ci.TipoFactor == "Exento"
}

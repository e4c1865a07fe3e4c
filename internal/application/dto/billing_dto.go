package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest body para POST /api/invoices. Crea el comprobante en
// BORRADOR; el timbrado es una operación separada.
type CreateInvoiceRequest struct {
	CustomerID string `json:"customer_id"`
	Serie      string `json:"serie,omitempty"`
	Folio      string `json:"folio,omitempty"`

	FormaPago  string `json:"forma_pago"`  // c_FormaPago
	MetodoPago string `json:"metodo_pago"` // PUE | PPD
	UsoCFDI    string `json:"uso_cfdi"`    // c_UsoCFDI del receptor

	Moneda     string          `json:"moneda,omitempty"`      // default MXN
	TipoCambio decimal.Decimal `json:"tipo_cambio,omitempty"` // requerido si Moneda != MXN

	Conceptos []ConceptoRequest `json:"conceptos"`
}

// ConceptoRequest línea del comprobante.
type ConceptoRequest struct {
	ClaveProdServ    string `json:"clave_prod_serv"`
	NoIdentificacion string `json:"no_identificacion,omitempty"`
	ClaveUnidad      string `json:"clave_unidad"`
	Unidad           string `json:"unidad,omitempty"`
	Descripcion      string `json:"descripcion"`

	Cantidad      decimal.Decimal `json:"cantidad"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
	Descuento     decimal.Decimal `json:"descuento,omitempty"`

	ObjetoImp string             `json:"objeto_imp"` // 01 | 02 | 03
	Impuestos []ImpuestoRequest  `json:"impuestos,omitempty"`
}

// ImpuestoRequest impuesto de línea. El importe se calcula (Base × TasaOCuota);
// para TipoFactor Exento solo cuenta la base.
type ImpuestoRequest struct {
	Tipo       string          `json:"tipo"`        // TRASLADO | RETENCION
	Impuesto   string          `json:"impuesto"`    // 001 | 002 | 003
	TipoFactor string          `json:"tipo_factor"` // Tasa | Cuota | Exento
	TasaOCuota decimal.Decimal `json:"tasa_o_cuota,omitempty"`
}

// CancelInvoiceRequest body para POST /api/invoices/:id/cancelar.
type CancelInvoiceRequest struct {
	Motivo           string `json:"motivo"`                      // 01..04
	FolioSustitucion string `json:"folio_sustitucion,omitempty"` // UUID; requerido para motivo 01
}

// InvoiceResponse comprobante en respuestas.
type InvoiceResponse struct {
	ID         string `json:"id"`
	CompanyID  string `json:"company_id"`
	CustomerID string `json:"customer_id"`
	Serie      string `json:"serie,omitempty"`
	Folio      string `json:"folio,omitempty"`
	Fecha      string `json:"fecha"`

	FormaPago  string `json:"forma_pago"`
	MetodoPago string `json:"metodo_pago"`
	UsoCFDI    string `json:"uso_cfdi"`

	Moneda    string          `json:"moneda"`
	SubTotal  decimal.Decimal `json:"subtotal"`
	Descuento decimal.Decimal `json:"descuento"`
	Total     decimal.Decimal `json:"total"`

	Status        string     `json:"status"` // BORRADOR|TIMBRADA|ERROR|CANCELADA
	UUID          string     `json:"uuid,omitempty"`
	NoCertificado string     `json:"no_certificado,omitempty"`
	FechaTimbrado *time.Time `json:"fecha_timbrado,omitempty"`

	MotivoCancelacion string     `json:"motivo_cancelacion,omitempty"`
	FolioSustitucion  string     `json:"folio_sustitucion,omitempty"`
	CanceladaAt       *time.Time `json:"cancelada_at,omitempty"`

	LastError      string `json:"last_error,omitempty"`
	ReconciliarPAC bool   `json:"reconciliar_pac,omitempty"`
}

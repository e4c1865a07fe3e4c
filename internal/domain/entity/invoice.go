package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida fiscal del comprobante (CFDI 4.0).
// Transiciones válidas: BORRADOR → {TIMBRADA, ERROR}; ERROR → {BORRADOR, TIMBRADA};
// TIMBRADA → CANCELADA; CANCELADA es terminal.
const (
	StatusBorrador  = "BORRADOR"  // Capturada, sin sellar ni timbrar
	StatusTimbrada  = "TIMBRADA"  // Timbrada por el PAC; UUID asignado, campos fiscales inmutables
	StatusError     = "ERROR"     // Falló generación, sellado o timbrado; reintentable
	StatusCancelada = "CANCELADA" // Cancelada ante el SAT (terminal)
)

// Invoice representa la cabecera de un comprobante fiscal (factura).
// Una vez TIMBRADA, los montos y el XML son inmutables salvo los campos de
// cancelación; el UUID se asigna exactamente una vez.
type Invoice struct {
	ID         string
	CompanyID  string
	CustomerID string

	Serie string
	Folio string
	Fecha time.Time

	// Catálogos SAT
	FormaPago       string // c_FormaPago (01 Efectivo, 03 Transferencia, ...)
	MetodoPago      string // c_MetodoPago (PUE, PPD)
	UsoCFDI         string // c_UsoCFDI del receptor (G01, G03, S01, ...)
	LugarExpedicion string // Código postal del emisor

	Moneda     string          // c_Moneda (MXN, USD, ...)
	TipoCambio decimal.Decimal // Obligatorio si Moneda != MXN
	SubTotal   decimal.Decimal
	Descuento  decimal.Decimal
	Total      decimal.Decimal

	Status string

	// Resultado del pipeline de sellado/timbrado
	UUID           string // Folio fiscal asignado por el PAC (una sola vez)
	XMLUnsigned    string // XML sin sello (auditoría / vista previa)
	CadenaOriginal string // Cadena original firmada (pista legal de auditoría)
	Sello          string // Sello digital del emisor (Base64)
	NoCertificado  string // Serie del CSD del emisor
	XMLTimbrado    string // XML con TimbreFiscalDigital
	SelloSAT       string // Sello del SAT dentro del timbre
	FechaTimbrado  *time.Time

	// Cancelación
	MotivoCancelacion string // 01..04 (catálogo fijo SAT)
	FolioSustitucion  string // UUID del comprobante que sustituye (motivo 01)
	AcuseCancelacion  string // Acuse crudo devuelto por el PAC
	CanceladaAt       *time.Time

	// Diagnóstico del último intento fallido. ReconciliarPAC indica que el
	// intento anterior terminó en timeout y debe consultarse el estado en el
	// PAC antes de volver a enviar.
	LastError      string
	ReconciliarPAC bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timbrable reporta si el comprobante está en un estado desde el cual puede
// generarse/sellarse/timbrarse (BORRADOR o ERROR).
func (i *Invoice) Timbrable() bool {
	return i.Status == StatusBorrador || i.Status == StatusError
}

// Cancelable reporta si el comprobante puede cancelarse (solo TIMBRADA).
func (i *Invoice) Cancelable() bool {
	return i.Status == StatusTimbrada
}

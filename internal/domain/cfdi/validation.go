package cfdi

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/pkg/sat"
)

// ErrInvalidComprobante agrupa errores de validación del comprobante.
var ErrInvalidComprobante = errors.New("comprobante inválido para timbrado")

// ValidateComprobante valida la coherencia aritmética del comprobante antes de
// generar el XML: Importe por línea, SubTotal = Σ importes, y
// Total = SubTotal − Descuento + traslados − retenciones.
// Todo se compara redondeado a 2 decimales (precisión del Anexo 20).
func ValidateComprobante(inv *entity.Invoice, conceptos []*entity.Concepto) error {
	if inv == nil {
		return fmt.Errorf("%w: comprobante nulo", ErrInvalidComprobante)
	}
	var errs []error

	if len(conceptos) == 0 {
		errs = append(errs, fmt.Errorf("%w: debe tener al menos un concepto", ErrInvalidComprobante))
	}

	var sumImportes, sumDescuentos decimal.Decimal
	for i, c := range conceptos {
		expected := c.Cantidad.Mul(c.ValorUnitario).Sub(c.Descuento).Round(2)
		if !c.Importe.Round(2).Equal(expected) {
			errs = append(errs, fmt.Errorf("concepto %d: importe (%s) != cantidad×valorUnitario−descuento (%s)",
				i+1, c.Importe.StringFixed(2), expected.StringFixed(2)))
		}
		sumImportes = sumImportes.Add(c.Importe)
		sumDescuentos = sumDescuentos.Add(c.Descuento)
	}

	if !inv.SubTotal.Round(2).Equal(sumImportes.Round(2)) {
		errs = append(errs, fmt.Errorf("subtotal (%s) no coincide con la suma de importes (%s)",
			inv.SubTotal.StringFixed(2), sumImportes.Round(2).StringFixed(2)))
	}

	resumen := ResumirImpuestos(conceptos)
	expectedTotal := inv.SubTotal.Sub(inv.Descuento).
		Add(resumen.TotalTrasladados).Sub(resumen.TotalRetenidos).Round(2)
	if !inv.Total.Round(2).Equal(expectedTotal) {
		errs = append(errs, fmt.Errorf("total (%s) no coincide con subtotal−descuento+traslados−retenciones (%s)",
			inv.Total.StringFixed(2), expectedTotal.StringFixed(2)))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidComprobante}, errs...)...)
	}
	return nil
}

// ValidateCancelacion valida motivo y folio de sustitución ANTES de cualquier
// llamada al PAC. Los motivos que exigen sustitución (01) se rechazan sin un
// UUID válido del comprobante sustituto.
func ValidateCancelacion(motivo, folioSustitucion string) error {
	if !sat.ValidMotivosCancelacion[motivo] {
		return domain.NewValidationError("motivo", fmt.Sprintf("motivo de cancelación %q fuera del catálogo (01-04)", motivo))
	}
	if sat.MotivoRequiereSustitucion[motivo] {
		if folioSustitucion == "" {
			return domain.NewValidationError("folioSustitucion", "el motivo "+motivo+" requiere el UUID del comprobante que sustituye")
		}
		if _, err := uuid.Parse(folioSustitucion); err != nil {
			return domain.NewValidationError("folioSustitucion", "no es un UUID válido")
		}
	} else if folioSustitucion != "" {
		return domain.NewValidationError("folioSustitucion", "el motivo "+motivo+" no admite folio de sustitución")
	}
	return nil
}

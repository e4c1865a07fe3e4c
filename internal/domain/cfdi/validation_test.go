package cfdi_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// invoiceParaConceptos arma un comprobante cuyos totales cuadran con las líneas.
func invoiceParaConceptos(conceptos []*entity.Concepto) *entity.Invoice {
	inv := &entity.Invoice{Moneda: "MXN", Status: entity.StatusBorrador}
	res := cfdi.ResumirImpuestos(conceptos)
	for _, c := range conceptos {
		inv.SubTotal = inv.SubTotal.Add(c.Importe)
	}
	inv.Total = inv.SubTotal.Sub(inv.Descuento).
		Add(res.TotalTrasladados).Sub(res.TotalRetenidos).Round(2)
	return inv
}

func TestValidateComprobante_Coherente(t *testing.T) {
	conceptos := []*entity.Concepto{conceptoIVA16("1000.00"), conceptoIVA16("250.00")}
	inv := invoiceParaConceptos(conceptos)

	require.NoError(t, cfdi.ValidateComprobante(inv, conceptos))
}

func TestValidateComprobante_SinConceptos(t *testing.T) {
	inv := &entity.Invoice{Moneda: "MXN"}
	err := cfdi.ValidateComprobante(inv, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cfdi.ErrInvalidComprobante)
}

func TestValidateComprobante_ImporteDeLineaIncoherente(t *testing.T) {
	c := conceptoIVA16("1000.00")
	c.Importe = dec("999.00") // cantidad×valorUnitario = 1000.00
	inv := invoiceParaConceptos([]*entity.Concepto{c})

	err := cfdi.ValidateComprobante(inv, []*entity.Concepto{c})
	require.Error(t, err)
	assert.ErrorIs(t, err, cfdi.ErrInvalidComprobante)
	assert.Contains(t, err.Error(), "concepto 1")
}

func TestValidateComprobante_TotalIncoherente(t *testing.T) {
	conceptos := []*entity.Concepto{conceptoIVA16("1000.00")}
	inv := invoiceParaConceptos(conceptos)
	inv.Total = inv.Total.Add(dec("0.01"))

	err := cfdi.ValidateComprobante(inv, conceptos)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total")
}

func TestValidateComprobante_DescuentoEntraAlTotal(t *testing.T) {
	conceptos := []*entity.Concepto{conceptoIVA16("1000.00")}
	inv := invoiceParaConceptos(conceptos)
	inv.Descuento = dec("100.00")
	inv.Total = inv.Total.Sub(dec("100.00"))

	require.NoError(t, cfdi.ValidateComprobante(inv, conceptos))
}

func TestValidateCancelacion(t *testing.T) {
	folioValido := "11111111-2222-3333-4444-555555555555"

	// El motivo 01 exige folio de sustitución con formato UUID
	require.NoError(t, cfdi.ValidateCancelacion("01", folioValido))
	require.Error(t, cfdi.ValidateCancelacion("01", ""))
	require.Error(t, cfdi.ValidateCancelacion("01", "no-es-uuid"))

	// Los demás motivos no lo admiten
	require.NoError(t, cfdi.ValidateCancelacion("02", ""))
	require.NoError(t, cfdi.ValidateCancelacion("03", ""))
	require.NoError(t, cfdi.ValidateCancelacion("04", ""))
	require.Error(t, cfdi.ValidateCancelacion("02", folioValido))

	// Motivo fuera del catálogo
	err := cfdi.ValidateCancelacion("99", "")
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "motivo", verr.Field)
}

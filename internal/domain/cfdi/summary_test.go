package cfdi_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// conceptoIVA16 construye una línea gravada con IVA 16% sobre la base dada.
func conceptoIVA16(base string) *entity.Concepto {
	b := dec(base)
	return &entity.Concepto{
		ClaveProdServ: "01010101",
		ClaveUnidad:   "H87",
		Descripcion:   "Producto de prueba",
		Cantidad:      dec("1"),
		ValorUnitario: b,
		Importe:       b,
		ObjetoImp:     "02",
		Impuestos: []entity.ConceptoImpuesto{{
			Tipo:       entity.ImpuestoTraslado,
			Base:       b,
			Impuesto:   "002",
			TipoFactor: "Tasa",
			TasaOCuota: dec("0.160000"),
			Importe:    b.Mul(dec("0.16")).Round(2),
		}},
	}
}

func TestResumirImpuestos_AgrupaPorImpuestoFactorTasa(t *testing.T) {
	conceptos := []*entity.Concepto{conceptoIVA16("1000.00"), conceptoIVA16("500.00")}

	res := cfdi.ResumirImpuestos(conceptos)

	require.Len(t, res.Traslados, 1, "dos líneas con la misma tasa deben agruparse en un solo traslado")
	tras := res.Traslados[0]
	assert.Equal(t, "002", tras.Impuesto)
	assert.Equal(t, "Tasa", tras.TipoFactor)
	assert.True(t, tras.Base.Equal(dec("1500.00")), "base agrupada: %s", tras.Base)
	assert.True(t, tras.Importe.Equal(dec("240.00")), "importe agrupado: %s", tras.Importe)
	assert.True(t, res.TotalTrasladados.Equal(dec("240.00")))
	assert.True(t, res.TotalRetenidos.IsZero())
}

func TestResumirImpuestos_ExentoSoloAcumulaBase(t *testing.T) {
	exento := &entity.Concepto{
		Cantidad: dec("1"), ValorUnitario: dec("200.00"), Importe: dec("200.00"),
		ObjetoImp: "02",
		Impuestos: []entity.ConceptoImpuesto{{
			Tipo: entity.ImpuestoTraslado, Base: dec("200.00"),
			Impuesto: "002", TipoFactor: "Exento",
		}},
	}
	res := cfdi.ResumirImpuestos([]*entity.Concepto{exento, conceptoIVA16("100.00")})

	require.Len(t, res.Traslados, 2)
	// El total trasladado solo suma los gravados, nunca los exentos
	assert.True(t, res.TotalTrasladados.Equal(dec("16.00")), "total: %s", res.TotalTrasladados)

	var exentoRes *cfdi.TrasladoResumen
	for i := range res.Traslados {
		if res.Traslados[i].Exento {
			exentoRes = &res.Traslados[i]
		}
	}
	require.NotNil(t, exentoRes, "debe existir el traslado exento")
	assert.True(t, exentoRes.Base.Equal(dec("200.00")))
	assert.True(t, exentoRes.Importe.IsZero())
}

func TestResumirImpuestos_RetencionesAgrupadasPorImpuesto(t *testing.T) {
	c := conceptoIVA16("1000.00")
	c.Impuestos = append(c.Impuestos,
		entity.ConceptoImpuesto{
			Tipo: entity.ImpuestoRetencion, Base: dec("1000.00"),
			Impuesto: "001", TipoFactor: "Tasa", TasaOCuota: dec("0.100000"), Importe: dec("100.00"),
		},
		entity.ConceptoImpuesto{
			Tipo: entity.ImpuestoRetencion, Base: dec("1000.00"),
			Impuesto: "002", TipoFactor: "Tasa", TasaOCuota: dec("0.106667"), Importe: dec("106.67"),
		},
	)
	res := cfdi.ResumirImpuestos([]*entity.Concepto{c})

	require.Len(t, res.Retenciones, 2)
	// Orden determinista por código de impuesto
	assert.Equal(t, "001", res.Retenciones[0].Impuesto)
	assert.Equal(t, "002", res.Retenciones[1].Impuesto)
	assert.True(t, res.TotalRetenidos.Equal(dec("206.67")), "total retenido: %s", res.TotalRetenidos)
}

func TestResumirImpuestos_SinImpuestos(t *testing.T) {
	noObjeto := &entity.Concepto{
		Cantidad: dec("1"), ValorUnitario: dec("50.00"), Importe: dec("50.00"), ObjetoImp: "01",
	}
	res := cfdi.ResumirImpuestos([]*entity.Concepto{noObjeto})
	assert.True(t, res.Vacio(), "sin impuestos de línea el resumen debe quedar vacío")
}

// Package cfdi contiene reglas de dominio del comprobante fiscal (CFDI 4.0):
// agregación de impuestos y validaciones previas al sellado, sin dependencias
// de infraestructura.
package cfdi

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// TrasladoResumen traslado agregado a nivel comprobante, agrupado por
// (Impuesto, TipoFactor, TasaOCuota).
type TrasladoResumen struct {
	Base       decimal.Decimal
	Impuesto   string
	TipoFactor string
	TasaOCuota decimal.Decimal
	Importe    decimal.Decimal
	Exento     bool // Exento agrupa solo la base; sin tasa ni importe
}

// RetencionResumen retención agregada a nivel comprobante, agrupada por Impuesto.
type RetencionResumen struct {
	Impuesto string
	Importe  decimal.Decimal
}

// ResumenImpuestos resumen de impuestos del comprobante (cfdi:Impuestos).
type ResumenImpuestos struct {
	Traslados   []TrasladoResumen
	Retenciones []RetencionResumen

	TotalTrasladados decimal.Decimal
	TotalRetenidos   decimal.Decimal
}

// Vacio reporta si el comprobante no lleva nodo cfdi:Impuestos.
func (r ResumenImpuestos) Vacio() bool {
	return len(r.Traslados) == 0 && len(r.Retenciones) == 0
}

// ResumirImpuestos calcula el resumen de impuestos del comprobante a partir de
// los impuestos por concepto. Es un pliegue puro: el resumen a nivel documento
// es siempre la suma agrupada de los impuestos de línea, nunca se aplica a
// medias. Orden determinista (por impuesto, factor y tasa) para que dos
// generaciones del mismo comprobante produzcan XML byte-idéntico.
func ResumirImpuestos(conceptos []*entity.Concepto) ResumenImpuestos {
	type trasKey struct {
		impuesto, factor, tasa string
	}
	traslados := map[trasKey]*TrasladoResumen{}
	retenciones := map[string]*RetencionResumen{}

	for _, c := range conceptos {
		for _, imp := range c.Impuestos {
			switch imp.Tipo {
			case entity.ImpuestoTraslado:
				k := trasKey{imp.Impuesto, imp.TipoFactor, imp.TasaOCuota.StringFixed(6)}
				if imp.Exento() {
					k.tasa = ""
				}
				t, ok := traslados[k]
				if !ok {
					t = &TrasladoResumen{
						Impuesto:   imp.Impuesto,
						TipoFactor: imp.TipoFactor,
						TasaOCuota: imp.TasaOCuota,
						Exento:     imp.Exento(),
					}
					traslados[k] = t
				}
				t.Base = t.Base.Add(imp.Base)
				if !imp.Exento() {
					t.Importe = t.Importe.Add(imp.Importe)
				}
			case entity.ImpuestoRetencion:
				r, ok := retenciones[imp.Impuesto]
				if !ok {
					r = &RetencionResumen{Impuesto: imp.Impuesto}
					retenciones[imp.Impuesto] = r
				}
				r.Importe = r.Importe.Add(imp.Importe)
			}
		}
	}

	var out ResumenImpuestos
	for _, t := range traslados {
		out.Traslados = append(out.Traslados, *t)
		if !t.Exento {
			out.TotalTrasladados = out.TotalTrasladados.Add(t.Importe)
		}
	}
	for _, r := range retenciones {
		out.Retenciones = append(out.Retenciones, *r)
		out.TotalRetenidos = out.TotalRetenidos.Add(r.Importe)
	}

	sort.Slice(out.Traslados, func(i, j int) bool {
		a, b := out.Traslados[i], out.Traslados[j]
		if a.Impuesto != b.Impuesto {
			return a.Impuesto < b.Impuesto
		}
		if a.TipoFactor != b.TipoFactor {
			return a.TipoFactor < b.TipoFactor
		}
		return a.TasaOCuota.Cmp(b.TasaOCuota) < 0
	})
	sort.Slice(out.Retenciones, func(i, j int) bool {
		return out.Retenciones[i].Impuesto < out.Retenciones[j].Impuesto
	})
	return out
}

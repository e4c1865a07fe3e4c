package cfdi

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	domcfdi "github.com/jhoicas/Facturacion-api/internal/domain/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/pkg/sat"
)

// rootAttrOrder orden canónico de los atributos de cfdi:Comprobante según la
// secuencia del Anexo 20. La cadena original se deriva del árbol parseado, pero
// mantener este orden hace el XML byte-determinista y legible para auditoría.
var rootAttrOrder = []string{
	"xmlns:cfdi", "xmlns:xsi", "xsi:schemaLocation",
	"Version", "Serie", "Folio", "Fecha", "Sello", "FormaPago",
	"NoCertificado", "Certificado", "CondicionesDePago", "SubTotal",
	"Descuento", "Moneda", "TipoCambio", "Total", "TipoDeComprobante",
	"Exportacion", "MetodoPago", "LugarExpedicion",
}

// XMLBuilderService construye el XML CFDI 4.0 del comprobante (sin sello) y
// re-incrusta sello y certificado en una segunda pasada. Sin efectos de
// persistencia: composición pura sobre el agregado.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera los bytes del cfdi:Comprobante sin sellar. Rechaza comprobantes
// ya timbrados (un CFDI timbrado no se regenera) y referencias de catálogo
// faltantes con error de validación por campo.
func (s *XMLBuilderService) Build(ctx *ComprobanteContext) ([]byte, error) {
	if ctx == nil || ctx.Invoice == nil || ctx.Company == nil || ctx.Customer == nil {
		return nil, fmt.Errorf("cfdi: faltan comprobante, emisor o receptor en el contexto")
	}
	inv := ctx.Invoice
	if !inv.Timbrable() {
		return nil, fmt.Errorf("%w: estado %q no admite regenerar el XML", domain.ErrStateConflict, inv.Status)
	}
	if err := s.validateCatalogRefs(ctx); err != nil {
		return nil, err
	}
	resumen := domcfdi.ResumirImpuestos(ctx.Conceptos)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("cfdi:Comprobante")
	root.CreateAttr("xmlns:cfdi", NsCFDI)
	root.CreateAttr("xmlns:xsi", nsXSI)
	root.CreateAttr("xsi:schemaLocation", schemaLocationCFDI)
	root.CreateAttr("Version", ComprobanteVersion)
	if inv.Serie != "" {
		root.CreateAttr("Serie", inv.Serie)
	}
	if inv.Folio != "" {
		root.CreateAttr("Folio", inv.Folio)
	}
	root.CreateAttr("Fecha", inv.Fecha.Format(FechaLayout))
	root.CreateAttr("FormaPago", inv.FormaPago)
	root.CreateAttr("SubTotal", fmt2(inv.SubTotal))
	// Atributos opcionales en cero se omiten por completo, nunca "0.00"
	if inv.Descuento.IsPositive() {
		root.CreateAttr("Descuento", fmt2(inv.Descuento))
	}
	moneda := inv.Moneda
	if moneda == "" {
		moneda = sat.MonedaMXN
	}
	root.CreateAttr("Moneda", moneda)
	if moneda != sat.MonedaMXN {
		root.CreateAttr("TipoCambio", fmt6(inv.TipoCambio))
	}
	root.CreateAttr("Total", fmt2(inv.Total))
	root.CreateAttr("TipoDeComprobante", sat.ComprobanteIngreso)
	root.CreateAttr("Exportacion", sat.ExportacionNoAplica)
	root.CreateAttr("MetodoPago", inv.MetodoPago)
	lugar := inv.LugarExpedicion
	if lugar == "" {
		lugar = ctx.Company.CodigoPostal
	}
	root.CreateAttr("LugarExpedicion", lugar)

	emisor := root.CreateElement("cfdi:Emisor")
	emisor.CreateAttr("Rfc", sat.NormalizeRFC(ctx.Company.RFC))
	emisor.CreateAttr("Nombre", ctx.Company.RazonSocial)
	emisor.CreateAttr("RegimenFiscal", ctx.Company.RegimenFiscal)

	receptor := root.CreateElement("cfdi:Receptor")
	receptor.CreateAttr("Rfc", sat.NormalizeRFC(ctx.Customer.RFC))
	receptor.CreateAttr("Nombre", ctx.Customer.RazonSocial)
	receptor.CreateAttr("DomicilioFiscalReceptor", ctx.Customer.DomicilioFiscal)
	receptor.CreateAttr("RegimenFiscalReceptor", ctx.Customer.RegimenFiscal)
	receptor.CreateAttr("UsoCFDI", inv.UsoCFDI)

	conceptos := root.CreateElement("cfdi:Conceptos")
	for _, c := range ctx.Conceptos {
		s.writeConcepto(conceptos, c)
	}

	// cfdi:Impuestos a nivel comprobante: pliegue puro de los impuestos de
	// línea; se embebe completo o no se embebe (nunca parcial).
	if !resumen.Vacio() {
		s.writeImpuestos(root, resumen)
	}

	doc.WriteSettings = etree.WriteSettings{CanonicalAttrVal: true, CanonicalText: true}
	return doc.WriteToBytes()
}

// EmbedSello incrusta Sello, NoCertificado y Certificado en el Comprobante ya
// generado, reconstruyendo los atributos de la raíz en el orden del Anexo 20.
func (s *XMLBuilderService) EmbedSello(xmlBytes []byte, sello, noCertificado, certificadoB64 string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("cfdi: parsear XML para sellar: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, fmt.Errorf("cfdi: el documento no es un cfdi:Comprobante")
	}

	attrs := map[string]string{}
	for _, a := range root.Attr {
		attrs[a.FullKey()] = a.Value
	}
	attrs["Sello"] = sello
	attrs["NoCertificado"] = noCertificado
	attrs["Certificado"] = certificadoB64

	root.Attr = nil
	for _, key := range rootAttrOrder {
		if v, ok := attrs[key]; ok {
			root.CreateAttr(key, v)
			delete(attrs, key)
		}
	}
	// Atributos fuera del orden conocido se conservan al final
	for key, v := range attrs {
		root.CreateAttr(key, v)
	}

	doc.WriteSettings = etree.WriteSettings{CanonicalAttrVal: true, CanonicalText: true}
	return doc.WriteToBytes()
}

func (s *XMLBuilderService) writeConcepto(parent *etree.Element, c *entity.Concepto) {
	el := parent.CreateElement("cfdi:Concepto")
	el.CreateAttr("ClaveProdServ", c.ClaveProdServ)
	if c.NoIdentificacion != "" {
		el.CreateAttr("NoIdentificacion", c.NoIdentificacion)
	}
	el.CreateAttr("Cantidad", fmt6(c.Cantidad))
	el.CreateAttr("ClaveUnidad", c.ClaveUnidad)
	if c.Unidad != "" {
		el.CreateAttr("Unidad", c.Unidad)
	}
	el.CreateAttr("Descripcion", c.Descripcion)
	el.CreateAttr("ValorUnitario", fmt6(c.ValorUnitario))
	el.CreateAttr("Importe", fmt2(c.Importe))
	if c.Descuento.IsPositive() {
		el.CreateAttr("Descuento", fmt2(c.Descuento))
	}
	el.CreateAttr("ObjetoImp", c.ObjetoImp)

	if c.ObjetoImp != sat.ObjetoImpSiObjeto || len(c.Impuestos) == 0 {
		return
	}
	imp := el.CreateElement("cfdi:Impuestos")
	var traslados, retenciones *etree.Element
	for _, ci := range c.Impuestos {
		switch ci.Tipo {
		case entity.ImpuestoTraslado:
			if traslados == nil {
				traslados = imp.CreateElement("cfdi:Traslados")
			}
			t := traslados.CreateElement("cfdi:Traslado")
			t.CreateAttr("Base", fmt2(ci.Base))
			t.CreateAttr("Impuesto", ci.Impuesto)
			t.CreateAttr("TipoFactor", ci.TipoFactor)
			if !ci.Exento() {
				t.CreateAttr("TasaOCuota", fmt6(ci.TasaOCuota))
				t.CreateAttr("Importe", fmt2(ci.Importe))
			}
		case entity.ImpuestoRetencion:
			if retenciones == nil {
				retenciones = imp.CreateElement("cfdi:Retenciones")
			}
			r := retenciones.CreateElement("cfdi:Retencion")
			r.CreateAttr("Base", fmt2(ci.Base))
			r.CreateAttr("Impuesto", ci.Impuesto)
			r.CreateAttr("TipoFactor", ci.TipoFactor)
			r.CreateAttr("TasaOCuota", fmt6(ci.TasaOCuota))
			r.CreateAttr("Importe", fmt2(ci.Importe))
		}
	}
}

func (s *XMLBuilderService) writeImpuestos(root *etree.Element, resumen domcfdi.ResumenImpuestos) {
	imp := root.CreateElement("cfdi:Impuestos")
	if len(resumen.Retenciones) > 0 {
		imp.CreateAttr("TotalImpuestosRetenidos", fmt2(resumen.TotalRetenidos))
	}
	hayGravados := false
	for _, t := range resumen.Traslados {
		if !t.Exento {
			hayGravados = true
		}
	}
	if hayGravados {
		imp.CreateAttr("TotalImpuestosTrasladados", fmt2(resumen.TotalTrasladados))
	}

	// Orden del XSD: Retenciones antes que Traslados
	if len(resumen.Retenciones) > 0 {
		rets := imp.CreateElement("cfdi:Retenciones")
		for _, r := range resumen.Retenciones {
			el := rets.CreateElement("cfdi:Retencion")
			el.CreateAttr("Impuesto", r.Impuesto)
			el.CreateAttr("Importe", fmt2(r.Importe))
		}
	}
	if len(resumen.Traslados) > 0 {
		tras := imp.CreateElement("cfdi:Traslados")
		for _, t := range resumen.Traslados {
			el := tras.CreateElement("cfdi:Traslado")
			el.CreateAttr("Base", fmt2(t.Base))
			el.CreateAttr("Impuesto", t.Impuesto)
			el.CreateAttr("TipoFactor", t.TipoFactor)
			if !t.Exento {
				el.CreateAttr("TasaOCuota", fmt6(t.TasaOCuota))
				el.CreateAttr("Importe", fmt2(t.Importe))
			}
		}
	}
}

// validateCatalogRefs exige las referencias de catálogo obligatorias antes de
// componer; cada falta se reporta como error de validación por campo.
func (s *XMLBuilderService) validateCatalogRefs(ctx *ComprobanteContext) error {
	inv := ctx.Invoice
	if !sat.ValidFormaPagoCodes[inv.FormaPago] {
		return domain.NewValidationError("formaPago", fmt.Sprintf("código %q fuera del catálogo c_FormaPago", inv.FormaPago))
	}
	if inv.MetodoPago != sat.MetodoPagoPUE && inv.MetodoPago != sat.MetodoPagoPPD {
		return domain.NewValidationError("metodoPago", fmt.Sprintf("código %q fuera del catálogo c_MetodoPago", inv.MetodoPago))
	}
	if inv.UsoCFDI == "" {
		return domain.NewValidationError("usoCFDI", "uso CFDI del receptor requerido")
	}
	if ctx.Company.RegimenFiscal == "" {
		return domain.NewValidationError("emisor.regimenFiscal", "régimen fiscal del emisor requerido")
	}
	if ctx.Customer.RegimenFiscal == "" {
		return domain.NewValidationError("receptor.regimenFiscal", "régimen fiscal del receptor requerido")
	}
	if ctx.Customer.DomicilioFiscal == "" {
		return domain.NewValidationError("receptor.domicilioFiscal", "código postal del receptor requerido")
	}
	if inv.LugarExpedicion == "" && ctx.Company.CodigoPostal == "" {
		return domain.NewValidationError("lugarExpedicion", "código postal de expedición requerido")
	}
	for i, c := range ctx.Conceptos {
		if c.ClaveProdServ == "" {
			return domain.NewValidationError(fmt.Sprintf("conceptos[%d].claveProdServ", i), "clave de producto/servicio requerida")
		}
		if c.ClaveUnidad == "" {
			return domain.NewValidationError(fmt.Sprintf("conceptos[%d].claveUnidad", i), "clave de unidad requerida")
		}
		if c.ObjetoImp == "" {
			return domain.NewValidationError(fmt.Sprintf("conceptos[%d].objetoImp", i), "objeto de impuesto requerido")
		}
	}
	return nil
}

// fmt2 formatea montos a 2 decimales (SubTotal, Total, Importe, Descuento).
func fmt2(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// fmt6 formatea valores unitarios, cantidades, tasas y tipo de cambio a 6 decimales.
func fmt6(d decimal.Decimal) string {
	return d.Round(6).StringFixed(6)
}

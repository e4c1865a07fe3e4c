package cfdi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// ErrMalformedXML entrada no parseable como XML.
var ErrMalformedXML = errors.New("XML malformado")

// BuildCadenaOriginal deriva la cadena original del comprobante según la
// secuencia de la transformación cadenaoriginal_4_0 del SAT: valores de
// atributos en orden estricto, separados por "|", enmarcados en "||...||",
// con espacios en blanco colapsados. Opera sobre el árbol parseado (el XML se
// canonicaliza primero), de modo que dos documentos estructuralmente idénticos
// producen cadenas byte-idénticas sin importar el formato de serialización.
// Sello y Certificado quedan fuera de la cadena; NoCertificado sí entra.
func BuildCadenaOriginal(xmlBytes []byte) (string, error) {
	canon, err := canonicalizeXML(xmlBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(canon); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return "", fmt.Errorf("%w: la raíz no es cfdi:Comprobante", ErrMalformedXML)
	}

	var c cadena
	c.comprobante(root)
	if e := child(root, "InformacionGlobal"); e != nil {
		c.attrs(e, "Periodicidad", "Meses", "Año")
	}
	for _, e := range children(root, "CfdiRelacionados") {
		c.attrs(e, "TipoRelacion")
		for _, rel := range children(e, "CfdiRelacionado") {
			c.attrs(rel, "UUID")
		}
	}
	if e := child(root, "Emisor"); e != nil {
		c.attrs(e, "Rfc", "Nombre", "RegimenFiscal", "FacAtrAdquirente")
	}
	if e := child(root, "Receptor"); e != nil {
		c.attrs(e, "Rfc", "Nombre", "DomicilioFiscalReceptor", "ResidenciaFiscal",
			"NumRegIdTrib", "RegimenFiscalReceptor", "UsoCFDI")
	}
	if cs := child(root, "Conceptos"); cs != nil {
		for _, con := range children(cs, "Concepto") {
			c.concepto(con)
		}
	}
	// Impuestos a nivel comprobante (hijo directo de la raíz)
	if imp := child(root, "Impuestos"); imp != nil {
		c.impuestosComprobante(imp)
	}

	return "||" + strings.Join(c.vals, "|") + "||", nil
}

// canonicalizeXML aplica canonicalización XML (C14N) a los bytes de entrada.
func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// cadena acumula los valores en el orden de la transformación.
type cadena struct {
	vals []string
}

// attrs agrega el valor de cada atributo presente, en orden; los ausentes se
// omiten por completo (semántica de atributo opcional de la transformación).
func (c *cadena) attrs(e *etree.Element, names ...string) {
	for _, name := range names {
		if a := e.SelectAttr(name); a != nil {
			c.vals = append(c.vals, collapse(a.Value))
		}
	}
}

func (c *cadena) comprobante(root *etree.Element) {
	c.attrs(root,
		"Version", "Serie", "Folio", "Fecha", "FormaPago", "NoCertificado",
		"CondicionesDePago", "SubTotal", "Descuento", "Moneda", "TipoCambio",
		"Total", "TipoDeComprobante", "Exportacion", "MetodoPago",
		"LugarExpedicion", "Confirmacion")
}

func (c *cadena) concepto(e *etree.Element) {
	c.attrs(e, "ClaveProdServ", "NoIdentificacion", "Cantidad", "ClaveUnidad",
		"Unidad", "Descripcion", "ValorUnitario", "Importe", "Descuento", "ObjetoImp")
	if imp := child(e, "Impuestos"); imp != nil {
		if tras := child(imp, "Traslados"); tras != nil {
			for _, t := range children(tras, "Traslado") {
				c.attrs(t, "Base", "Impuesto", "TipoFactor", "TasaOCuota", "Importe")
			}
		}
		if rets := child(imp, "Retenciones"); rets != nil {
			for _, r := range children(rets, "Retencion") {
				c.attrs(r, "Base", "Impuesto", "TipoFactor", "TasaOCuota", "Importe")
			}
		}
	}
	if act := child(e, "ACuentaTerceros"); act != nil {
		c.attrs(act, "RfcACuentaTerceros", "NombreACuentaTerceros",
			"RegimenFiscalACuentaTerceros", "DomicilioFiscalACuentaTerceros")
	}
	for _, ia := range children(e, "InformacionAduanera") {
		c.attrs(ia, "NumeroPedimento")
	}
	for _, cp := range children(e, "CuentaPredial") {
		c.attrs(cp, "Numero")
	}
}

func (c *cadena) impuestosComprobante(imp *etree.Element) {
	if rets := child(imp, "Retenciones"); rets != nil {
		for _, r := range children(rets, "Retencion") {
			c.attrs(r, "Impuesto", "Importe")
		}
	}
	c.attrs(imp, "TotalImpuestosRetenidos")
	if tras := child(imp, "Traslados"); tras != nil {
		for _, t := range children(tras, "Traslado") {
			c.attrs(t, "Base", "Impuesto", "TipoFactor", "TasaOCuota", "Importe")
		}
	}
	c.attrs(imp, "TotalImpuestosTrasladados")
}

// child devuelve el primer hijo con ese nombre local (cualquier prefijo).
func child(e *etree.Element, local string) *etree.Element {
	for _, ch := range e.ChildElements() {
		if ch.Tag == local {
			return ch
		}
	}
	return nil
}

// children devuelve todos los hijos con ese nombre local, en orden de documento.
func children(e *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, ch := range e.ChildElements() {
		if ch.Tag == local {
			out = append(out, ch)
		}
	}
	return out
}

// collapse normaliza espacios en blanco como normalize-space() de XSLT.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

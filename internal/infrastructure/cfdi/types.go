// Package cfdi implementa la generación del XML CFDI 4.0 (Anexo 20 SAT),
// la cadena original, el sellado digital y la bóveda de certificados (CSD).
package cfdi

import (
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// Namespaces y schemaLocation oficiales CFDI 4.0.
const (
	NsCFDI = "http://www.sat.gob.mx/cfd/4"
	NsTFD  = "http://www.sat.gob.mx/TimbreFiscalDigital"
	nsXSI  = "http://www.w3.org/2001/XMLSchema-instance"

	schemaLocationCFDI = "http://www.sat.gob.mx/cfd/4 http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd"

	// Version del comprobante (fija para el esquema vigente).
	ComprobanteVersion = "4.0"

	// Layout de cbc Fecha del Anexo 20 (hora local del lugar de expedición, sin zona).
	FechaLayout = "2006-01-02T15:04:05"
)

// ComprobanteContext agrupa el agregado completo necesario para construir el
// XML: comprobante, emisor, receptor y conceptos con sus impuestos. Los datos
// llegan ya resueltos y validados referencialmente por la capa de datos.
type ComprobanteContext struct {
	Invoice   *entity.Invoice
	Company   *entity.Company  // Emisor (cfdi:Emisor)
	Customer  *entity.Customer // Receptor (cfdi:Receptor)
	Conceptos []*entity.Concepto
}

package pac

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// uuidNamespace espacio de nombres para derivar UUIDs deterministas del
// contenido del XML sellado (mismo documento → mismo folio fiscal simulado).
var uuidNamespace = uuid.MustParse("8cfd1e36-5d3a-4b41-9f7e-d20a40f1b4c1")

// Simulador PAC fuera de línea: inyecta un TimbreFiscalDigital sintético con
// latencia despreciable. Permite ejercitar el pipeline completo donde no hay
// ruta de red a un proveedor real (desarrollo, CI).
type Simulador struct {
	// FixedUUID fuerza un folio fiscal fijo; vacío = UUID determinista
	// derivado del contenido del documento.
	FixedUUID string
	// Now permite fijar el reloj en pruebas; nil = time.Now.
	Now func() time.Time
}

// NewSimulador crea el simulador con UUID determinista por contenido.
func NewSimulador() *Simulador {
	return &Simulador{}
}

var _ Stamper = (*Simulador)(nil)

// Stamp inyecta el timbre sintético si el documento no trae uno y devuelve el
// resultado como lo haría un PAC real. Siempre success.
func (s *Simulador) Stamp(ctx context.Context, xmlSellado []byte) (*StampResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(ProviderSimulador, err.Error())
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlSellado); err != nil {
		return nil, invalidResponse(ProviderSimulador, "XML sellado no parseable: "+err.Error())
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, invalidResponse(ProviderSimulador, "el documento no es un cfdi:Comprobante")
	}

	folioFiscal := s.FixedUUID
	if folioFiscal == "" {
		folioFiscal = strings.ToUpper(uuid.NewSHA1(uuidNamespace, xmlSellado).String())
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	fecha := now.Truncate(time.Second)

	if tieneTimbre(root) == nil {
		sello := root.SelectAttrValue("Sello", "")
		comp := root.CreateElement("cfdi:Complemento")
		tfd := comp.CreateElement("tfd:TimbreFiscalDigital")
		tfd.CreateAttr("xmlns:tfd", nsTFD)
		tfd.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
		tfd.CreateAttr("xsi:schemaLocation", nsTFD+" http://www.sat.gob.mx/sitio_internet/cfd/timbrefiscaldigital/TimbreFiscalDigitalv11.xsd")
		tfd.CreateAttr("Version", "1.1")
		tfd.CreateAttr("UUID", folioFiscal)
		tfd.CreateAttr("FechaTimbrado", fecha.Format(FechaTimbradoLayout))
		tfd.CreateAttr("RfcProvCertif", "SPR190613I52")
		tfd.CreateAttr("SelloCFD", sello)
		tfd.CreateAttr("NoCertificadoSAT", "30001000000500003416")
		tfd.CreateAttr("SelloSAT", selloSATSimulado)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, invalidResponse(ProviderSimulador, "serializar XML timbrado: "+err.Error())
	}
	timbre, err := ExtractTimbre(out)
	if err != nil {
		return nil, invalidResponse(ProviderSimulador, err.Error())
	}
	return &StampResult{
		UUID:             timbre.UUID,
		FechaTimbrado:    timbre.FechaTimbrado,
		SelloSAT:         timbre.SelloSAT,
		NoCertificadoSAT: timbre.NoCertificadoSAT,
		XMLTimbrado:      out,
	}, nil
}

// Cancel simula una cancelación aceptada y devuelve un acuse sintético.
func (s *Simulador) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(ProviderSimulador, err.Error())
	}
	if req.UUID == "" {
		return nil, providerFault(ProviderSimulador, "UUID requerido para cancelar")
	}
	acuse := fmt.Sprintf(
		`<Acuse xmlns="http://cancelacfd.sat.gob.mx" Fecha="%s" RfcEmisor="%s"><Folios><Folio UUID="%s" EstatusUUID="201" Motivo="%s"/></Folios></Acuse>`,
		time.Now().Format(FechaTimbradoLayout), req.RFC, req.UUID, req.Motivo)
	return &CancelResult{Acuse: acuse, Estatus: "Cancelado"}, nil
}

// Query reporta timbrado todo UUID no vacío (el simulador nunca pierde documentos).
func (s *Simulador) Query(ctx context.Context, folioFiscal string) (*StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(ProviderSimulador, err.Error())
	}
	if folioFiscal == "" {
		return &StatusResult{Estatus: "NoEncontrado"}, nil
	}
	return &StatusResult{Timbrado: true, Estatus: "Vigente"}, nil
}

// tieneTimbre devuelve el TFD existente o nil.
func tieneTimbre(root *etree.Element) *etree.Element {
	for _, comp := range root.ChildElements() {
		if comp.Tag != "Complemento" {
			continue
		}
		for _, ch := range comp.ChildElements() {
			if ch.Tag == "TimbreFiscalDigital" {
				return ch
			}
		}
	}
	return nil
}

// selloSATSimulado firma sintética reconocible en pruebas (no válida ante el SAT).
const selloSATSimulado = "U0VMTE9TQVRTSU1VTEFETy1OTy1WQUxJRE8="

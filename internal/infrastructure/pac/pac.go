// Package pac define el puerto de timbrado/cancelación ante Proveedores
// Autorizados de Certificación (PAC) y sus implementaciones intercambiables:
// un simulador determinista sin red y un conector SOAP a un PAC real.
package pac

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// StampResult resultado de un timbrado exitoso.
type StampResult struct {
	UUID             string    // Folio fiscal asignado
	FechaTimbrado    time.Time
	SelloSAT         string
	NoCertificadoSAT string
	XMLTimbrado      []byte // XML ya complementado con tfd:TimbreFiscalDigital
}

// CancelRequest solicitud de cancelación ante el PAC.
type CancelRequest struct {
	UUID             string
	RFC              string // RFC del emisor
	Motivo           string // 01..04; el llamador valida contra el catálogo
	FolioSustitucion string // Requerido según el motivo (01)
}

// CancelResult resultado de una cancelación aceptada.
type CancelResult struct {
	Acuse   string // Acuse crudo del PAC (XML), para auditoría
	Estatus string // Estatus reportado (ej. "Cancelado", "EnProceso")
}

// StatusResult estado de un comprobante consultado en el PAC. Se usa para
// reconciliar intentos cuyo desenlace quedó desconocido (timeout) antes de
// volver a enviar, y así evitar timbrados duplicados.
type StatusResult struct {
	Timbrado  bool
	Cancelado bool
	Estatus   string
}

// Stamper capacidad polimórfica sobre proveedores de certificación: timbrar,
// cancelar y consultar estado. Toda llamada lleva context con timeout.
type Stamper interface {
	Stamp(ctx context.Context, xmlSellado []byte) (*StampResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
	Query(ctx context.Context, uuid string) (*StatusResult, error)
}

const nsTFD = "http://www.sat.gob.mx/TimbreFiscalDigital"

// FechaTimbradoLayout layout de FechaTimbrado en el timbre.
const FechaTimbradoLayout = "2006-01-02T15:04:05"

// Timbre datos extraídos de tfd:TimbreFiscalDigital.
type Timbre struct {
	UUID             string
	FechaTimbrado    time.Time
	SelloSAT         string
	NoCertificadoSAT string
	RfcProvCertif    string
}

// ExtractTimbre localiza el TimbreFiscalDigital dentro de cfdi:Complemento y
// extrae sus atributos. Error si el XML no trae timbre o no parsea.
func ExtractTimbre(xmlTimbrado []byte) (*Timbre, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlTimbrado); err != nil {
		return nil, fmt.Errorf("parsear XML timbrado: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("XML timbrado sin raíz")
	}
	var tfd *etree.Element
	for _, comp := range root.ChildElements() {
		if comp.Tag != "Complemento" {
			continue
		}
		for _, ch := range comp.ChildElements() {
			if ch.Tag == "TimbreFiscalDigital" {
				tfd = ch
				break
			}
		}
	}
	if tfd == nil {
		return nil, fmt.Errorf("el XML no contiene TimbreFiscalDigital")
	}
	t := &Timbre{
		UUID:             tfd.SelectAttrValue("UUID", ""),
		SelloSAT:         tfd.SelectAttrValue("SelloSAT", ""),
		NoCertificadoSAT: tfd.SelectAttrValue("NoCertificadoSAT", ""),
		RfcProvCertif:    tfd.SelectAttrValue("RfcProvCertif", ""),
	}
	if t.UUID == "" {
		return nil, fmt.Errorf("timbre sin UUID")
	}
	if raw := tfd.SelectAttrValue("FechaTimbrado", ""); raw != "" {
		fecha, err := time.Parse(FechaTimbradoLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("timbre con FechaTimbrado inválida %q: %w", raw, err)
		}
		t.FechaTimbrado = fecha
	}
	return t, nil
}

// invalidResponse construye el GatewayError de respuesta no interpretable.
func invalidResponse(provider, msg string) error {
	return &domain.GatewayError{Kind: domain.GatewayInvalidResponse, Provider: provider, Message: msg}
}

// providerFault construye el GatewayError de rechazo/falla del proveedor.
func providerFault(provider, msg string) error {
	return &domain.GatewayError{Kind: domain.GatewayProviderFault, Provider: provider, Message: msg}
}

// timeoutErr construye el GatewayError de timeout o cancelación de contexto.
func timeoutErr(provider, msg string) error {
	return &domain.GatewayError{Kind: domain.GatewayTimeout, Provider: provider, Message: msg}
}

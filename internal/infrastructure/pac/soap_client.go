package pac

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ── Conector SOAP a un PAC real ───────────────────────────────────────────────

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSTimbrado = "http://timbrado.pac.mx/"
	soapActionBase = "http://timbrado.pac.mx/IServicioTimbrado/"
)

// ConectorSOAP implementa Stamper contra el web service SOAP de un PAC:
// envuelve el XML sellado en Base64, invoca la operación remota y normaliza
// faltas del proveedor en errores estructurados.
type ConectorSOAP struct {
	url        string
	usuario    string
	password   string
	httpClient *http.Client
}

// NewConectorSOAP construye el conector. El timeout del cliente HTTP actúa
// como tope duro adicional al timeout del context por llamada.
func NewConectorSOAP(cfg Config) *ConectorSOAP {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ConectorSOAP{
		url:        cfg.URL,
		usuario:    cfg.Usuario,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Stamper = (*ConectorSOAP)(nil)

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"s:Envelope"`
	XmlnsS  string   `xml:"xmlns:s,attr"`
	Body    soapBody `xml:"s:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type timbrarBody struct {
	XMLName  xml.Name `xml:"Timbrar"`
	Xmlns    string   `xml:"xmlns,attr"`
	Usuario  string   `xml:"usuario"`
	Password string   `xml:"password"`
	XMLB64   string   `xml:"cfdi"` // XML sellado en Base64
}

type cancelarBody struct {
	XMLName          xml.Name `xml:"Cancelar"`
	Xmlns            string   `xml:"xmlns,attr"`
	Usuario          string   `xml:"usuario"`
	Password         string   `xml:"password"`
	UUID             string   `xml:"uuid"`
	RFCEmisor        string   `xml:"rfcEmisor"`
	Motivo           string   `xml:"motivo"`
	FolioSustitucion string   `xml:"folioSustitucion,omitempty"`
}

type consultarBody struct {
	XMLName  xml.Name `xml:"ConsultarEstatus"`
	Xmlns    string   `xml:"xmlns,attr"`
	Usuario  string   `xml:"usuario"`
	Password string   `xml:"password"`
	UUID     string   `xml:"uuid"`
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	TimbrarResponse   *timbrarResponse   `xml:"TimbrarResponse"`
	CancelarResponse  *cancelarResponse  `xml:"CancelarResponse"`
	ConsultarResponse *consultarResponse `xml:"ConsultarEstatusResponse"`
	Fault             *soapFault         `xml:"Fault"`
}

type timbrarResponse struct {
	Result timbrarResult `xml:"TimbrarResult"`
}

type timbrarResult struct {
	Exito        bool   `xml:"Exito"`
	XMLTimbrado  string `xml:"XmlTimbrado"` // Base64
	CodigoError  string `xml:"CodigoError"`
	MensajeError string `xml:"MensajeError"`
}

type cancelarResponse struct {
	Result cancelarResult `xml:"CancelarResult"`
}

type cancelarResult struct {
	Exito        bool   `xml:"Exito"`
	Acuse        string `xml:"Acuse"` // Base64
	Estatus      string `xml:"EstatusUUID"`
	CodigoError  string `xml:"CodigoError"`
	MensajeError string `xml:"MensajeError"`
}

type consultarResponse struct {
	Result consultarResult `xml:"ConsultarEstatusResult"`
}

type consultarResult struct {
	Estado       string `xml:"Estado"` // Vigente | Cancelado | NoEncontrado
	EsCancelable string `xml:"EsCancelable"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Stamp envía el XML sellado (Base64) a la operación Timbrar y extrae UUID,
// fecha y sellos del XML ya complementado con el timbre.
func (c *ConectorSOAP) Stamp(ctx context.Context, xmlSellado []byte) (*StampResult, error) {
	body := &timbrarBody{
		Xmlns:    soapNSTimbrado,
		Usuario:  c.usuario,
		Password: c.password,
		XMLB64:   base64.StdEncoding.EncodeToString(xmlSellado),
	}
	resp, err := c.call(ctx, "Timbrar", body)
	if err != nil {
		return nil, err
	}
	if resp.Body.TimbrarResponse == nil {
		return nil, invalidResponse(ProviderConector, "respuesta SOAP sin TimbrarResponse")
	}
	result := resp.Body.TimbrarResponse.Result
	if !result.Exito {
		return nil, providerFault(ProviderConector,
			fmt.Sprintf("[%s] %s", result.CodigoError, result.MensajeError))
	}
	xmlTimbrado, err := base64.StdEncoding.DecodeString(result.XMLTimbrado)
	if err != nil {
		return nil, invalidResponse(ProviderConector, "XmlTimbrado no es Base64: "+err.Error())
	}
	timbre, err := ExtractTimbre(xmlTimbrado)
	if err != nil {
		return nil, invalidResponse(ProviderConector, err.Error())
	}
	return &StampResult{
		UUID:             timbre.UUID,
		FechaTimbrado:    timbre.FechaTimbrado,
		SelloSAT:         timbre.SelloSAT,
		NoCertificadoSAT: timbre.NoCertificadoSAT,
		XMLTimbrado:      xmlTimbrado,
	}, nil
}

// Cancel invoca la operación Cancelar y devuelve el acuse decodificado.
func (c *ConectorSOAP) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	body := &cancelarBody{
		Xmlns:            soapNSTimbrado,
		Usuario:          c.usuario,
		Password:         c.password,
		UUID:             req.UUID,
		RFCEmisor:        req.RFC,
		Motivo:           req.Motivo,
		FolioSustitucion: req.FolioSustitucion,
	}
	resp, err := c.call(ctx, "Cancelar", body)
	if err != nil {
		return nil, err
	}
	if resp.Body.CancelarResponse == nil {
		return nil, invalidResponse(ProviderConector, "respuesta SOAP sin CancelarResponse")
	}
	result := resp.Body.CancelarResponse.Result
	if !result.Exito {
		return nil, providerFault(ProviderConector,
			fmt.Sprintf("[%s] %s", result.CodigoError, result.MensajeError))
	}
	acuse, err := base64.StdEncoding.DecodeString(result.Acuse)
	if err != nil {
		// Algunos PAC devuelven el acuse en claro
		acuse = []byte(result.Acuse)
	}
	return &CancelResult{Acuse: string(acuse), Estatus: result.Estatus}, nil
}

// Query consulta el estatus de un UUID (reconciliación tras timeout).
func (c *ConectorSOAP) Query(ctx context.Context, uuid string) (*StatusResult, error) {
	body := &consultarBody{
		Xmlns:    soapNSTimbrado,
		Usuario:  c.usuario,
		Password: c.password,
		UUID:     uuid,
	}
	resp, err := c.call(ctx, "ConsultarEstatus", body)
	if err != nil {
		return nil, err
	}
	if resp.Body.ConsultarResponse == nil {
		return nil, invalidResponse(ProviderConector, "respuesta SOAP sin ConsultarEstatusResponse")
	}
	result := resp.Body.ConsultarResponse.Result
	return &StatusResult{
		Timbrado:  result.Estado == "Vigente" || result.Estado == "Cancelado",
		Cancelado: result.Estado == "Cancelado",
		Estatus:   result.Estado,
	}, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

// call serializa el envelope, ejecuta el POST SOAP y clasifica fallas de red:
// timeout/cancelación → TIMEOUT; SOAP Fault → PROVIDER_FAULT; cuerpo no
// interpretable → INVALID_RESPONSE.
func (c *ConectorSOAP) call(ctx context.Context, operation string, body interface{}) (*soapResponseEnvelope, error) {
	envelope := soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: body}}
	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapActionBase+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutErr(ProviderConector, ctx.Err().Error())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, timeoutErr(ProviderConector, err.Error())
		}
		return nil, providerFault(ProviderConector, "llamada HTTP fallida: "+err.Error())
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, invalidResponse(ProviderConector, "leer respuesta: "+err.Error())
	}

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, invalidResponse(ProviderConector,
			"no se pudo parsear respuesta SOAP: "+truncate(string(rawBody), 512))
	}
	if envResp.Body.Fault != nil {
		return nil, providerFault(ProviderConector,
			fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString))
	}
	return &envResp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}

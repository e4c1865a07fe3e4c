package entity

import "time"

// Customer representa al receptor del comprobante (cfdi:Receptor).
type Customer struct {
	ID               string
	CompanyID        string
	RFC              string
	RazonSocial      string
	DomicilioFiscal  string // Código postal del domicilio fiscal del receptor
	RegimenFiscal    string // c_RegimenFiscal del receptor
	UsoCFDIDefault   string // Uso CFDI habitual (G01, G03, S01, ...)
	Email            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

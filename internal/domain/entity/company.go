package entity

import "time"

// Company representa al emisor del comprobante (cfdi:Emisor).
type Company struct {
	ID            string
	RFC           string
	RazonSocial   string // Nombre sin régimen societario, como exige CFDI 4.0
	RegimenFiscal string // c_RegimenFiscal (601, 612, 626, ...)
	CodigoPostal  string // Lugar de expedición
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

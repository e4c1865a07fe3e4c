package billing

import "time"

// StampedEvent comprobante timbrado con éxito (publicado post-commit).
type StampedEvent struct {
	InvoiceID     string    `json:"invoice_id"`
	CompanyID     string    `json:"company_id"`
	UUID          string    `json:"uuid"`
	Serie         string    `json:"serie,omitempty"`
	Folio         string    `json:"folio,omitempty"`
	FechaTimbrado time.Time `json:"fecha_timbrado"`
}

// CancelledEvent comprobante cancelado ante el SAT (publicado post-commit).
type CancelledEvent struct {
	InvoiceID        string    `json:"invoice_id"`
	CompanyID        string    `json:"company_id"`
	UUID             string    `json:"uuid"`
	Motivo           string    `json:"motivo"`
	FolioSustitucion string    `json:"folio_sustitucion,omitempty"`
	CanceladaAt      time.Time `json:"cancelada_at"`
}

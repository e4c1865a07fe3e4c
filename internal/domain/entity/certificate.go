package entity

import "time"

// Certificate representa un Certificado de Sello Digital (CSD) del emisor.
// El certificado (.cer) se guarda en DER tal cual lo emite el SAT; la llave
// privada (.key) se guarda cifrada tal cual (PKCS#8 DER cifrado o PKCS#12) y
// su contraseña se guarda cifrada con AES-GCM bajo el secreto de aplicación.
// Usable para sellar solo si Active y now ∈ [ValidFrom, ValidTo].
type Certificate struct {
	ID        string
	CompanyID string

	RFC           string // RFC del titular (debe coincidir con el emisor)
	NoCertificado string // Serie de 20 dígitos asignada por el SAT

	CerDER        []byte // Certificado X.509 en DER
	KeyDER        []byte // Llave privada protegida (PKCS#8 cifrado o PKCS#12)
	PassphraseEnc []byte // Contraseña de la llave, cifrada (nunca en claro)

	ValidFrom time.Time
	ValidTo   time.Time
	Active    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Vigente reporta si now cae dentro de la ventana de validez del certificado.
func (c *Certificate) Vigente(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

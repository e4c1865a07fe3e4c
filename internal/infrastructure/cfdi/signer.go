package cfdi

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// SelloResult resultado del sellado: sello digital y datos del certificado
// listos para incrustarse en el Comprobante.
type SelloResult struct {
	Sello         string // Firma RSA PKCS#1 v1.5 / SHA-256 de la cadena, Base64
	Certificado   string // Certificado DER en Base64
	NoCertificado string // Serie del certificado
}

// Sellar firma la cadena original con la llave privada del CSD: SHA-256 sobre
// la cadena en UTF-8, firma RSA con relleno PKCS#1 v1.5, salida Base64.
// No muta el comprobante; incrustar el sello es responsabilidad del composer.
func Sellar(cadenaOriginal string, key *rsa.PrivateKey, cert *x509.Certificate) (*SelloResult, error) {
	if cadenaOriginal == "" {
		return nil, fmt.Errorf("%w: cadena original vacía", domain.ErrSigning)
	}
	if key == nil || cert == nil {
		return nil, fmt.Errorf("%w: llave o certificado nulos", domain.ErrSigning)
	}
	digest := sha256.Sum256([]byte(cadenaOriginal))
	firma, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	return &SelloResult{
		Sello:         base64.StdEncoding.EncodeToString(firma),
		Certificado:   base64.StdEncoding.EncodeToString(cert.Raw),
		NoCertificado: SATSerial(cert),
	}, nil
}

// VerificarSello verifica el sello contra la cadena con la llave pública del
// certificado. Se usa en pruebas y auditoría; nunca en el camino de timbrado.
func VerificarSello(cadenaOriginal, selloB64 string, cert *x509.Certificate) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("el certificado no contiene llave pública RSA")
	}
	firma, err := base64.StdEncoding.DecodeString(selloB64)
	if err != nil {
		return fmt.Errorf("sello no es Base64 válido: %w", err)
	}
	digest := sha256.Sum256([]byte(cadenaOriginal))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], firma)
}

// SATSerial devuelve la serie del certificado como la espera el SAT: los CSD
// codifican los 20 dígitos de la serie como ASCII dentro del serial entero, por
// lo que el hexadecimal se decodifica a dígitos; si el serial no sigue esa
// convención se devuelve el hexadecimal tal cual.
func SATSerial(cert *x509.Certificate) string {
	hexSerial := cert.SerialNumber.Text(16)
	if len(hexSerial)%2 != 0 {
		hexSerial = "0" + hexSerial
	}
	decoded := make([]byte, 0, len(hexSerial)/2)
	for i := 0; i+1 < len(hexSerial); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(hexSerial[i:i+2], "%02x", &b); err != nil {
			return hexSerial
		}
		if b < '0' || b > '9' {
			return hexSerial
		}
		decoded = append(decoded, b)
	}
	if len(decoded) == 0 {
		return hexSerial
	}
	return string(decoded)
}

package cfdi

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// oidRFC OID x500UniqueIdentifier: los certificados del SAT llevan ahí el RFC
// del titular (a veces como "RFC / CURP").
var oidRFC = asn1.ObjectIdentifier{2, 5, 4, 45}

// PublicCert datos públicos del certificado para incrustar en el comprobante.
type PublicCert struct {
	Cert          *x509.Certificate
	Base64DER     string
	NoCertificado string
	RFC           string
}

// CertValidation resultado de validar un CSD.
type CertValidation struct {
	Valid   bool
	Reasons []string
}

// Vault resuelve y valida el material de firma de un CSD: descifra la
// contraseña guardada, carga la llave probando las dos codificaciones
// esperadas y verifica vigencia y bandera de activo. Sin estado compartido:
// cada llamada recibe el certificado explícitamente y es segura de repetir.
type Vault struct {
	secrets SecretProvider
}

// NewVault construye la bóveda con el proveedor de secretos.
func NewVault(secrets SecretProvider) *Vault {
	return &Vault{secrets: secrets}
}

// Validate verifica si el CSD es usable para sellar en el instante now:
// activo y dentro de su ventana de validez. Barato, sin efectos, repetible.
func (v *Vault) Validate(cert *entity.Certificate, now time.Time) CertValidation {
	var reasons []string
	if cert == nil {
		return CertValidation{Reasons: []string{"certificado nulo"}}
	}
	if !cert.Active {
		reasons = append(reasons, "certificado inactivo")
	}
	if now.Before(cert.ValidFrom) {
		reasons = append(reasons, fmt.Sprintf("aún no vigente (inicia %s)", cert.ValidFrom.Format("2006-01-02")))
	}
	if now.After(cert.ValidTo) {
		reasons = append(reasons, fmt.Sprintf("vencido desde %s", cert.ValidTo.Format("2006-01-02")))
	}
	if len(cert.CerDER) == 0 || len(cert.KeyDER) == 0 {
		reasons = append(reasons, "material del certificado incompleto")
	}
	return CertValidation{Valid: len(reasons) == 0, Reasons: reasons}
}

// LoadSigningKey descifra la contraseña y carga la llave privada RSA del CSD.
// Falla con CertificateError si Validate fallaría; con ErrKeyLoad si la llave
// no puede leerse o no corresponde al certificado. Los mensajes nunca incluyen
// la contraseña ni bytes de la llave.
func (v *Vault) LoadSigningKey(cert *entity.Certificate) (*rsa.PrivateKey, error) {
	if res := v.Validate(cert, time.Now()); !res.Valid {
		return nil, &domain.CertificateError{Reasons: res.Reasons}
	}
	pass, err := v.secrets.DecryptPassphrase(cert.PassphraseEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: descifrar contraseña", domain.ErrKeyLoad)
	}
	key, err := parsePrivateKey(cert.KeyDER, pass)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyLoad, err)
	}

	pub, err := v.ReadPublicCertificate(cert)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.Cert.PublicKey.(*rsa.PublicKey)
	if !ok || rsaPub.N.Cmp(key.N) != 0 {
		return nil, fmt.Errorf("%w: la llave no corresponde al certificado", domain.ErrKeyLoad)
	}
	return key, nil
}

// ReadPublicCertificate parsea el .cer y expone DER en Base64, serie y RFC.
func (v *Vault) ReadPublicCertificate(cert *entity.Certificate) (*PublicCert, error) {
	if cert == nil || len(cert.CerDER) == 0 {
		return nil, fmt.Errorf("%w: certificado sin bytes DER", domain.ErrKeyLoad)
	}
	der := cert.CerDER
	// El .cer del SAT es DER, pero se acepta PEM por conveniencia
	if block, _ := pem.Decode(der); block != nil && block.Type == "CERTIFICATE" {
		der = block.Bytes
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrKeyLoad, err)
	}
	return &PublicCert{
		Cert:          parsed,
		Base64DER:     base64.StdEncoding.EncodeToString(parsed.Raw),
		NoCertificado: SATSerial(parsed),
		RFC:           rfcFromSubject(parsed),
	}, nil
}

// parsePrivateKey prueba las dos codificaciones binarias esperadas del .key:
// PKCS#8 DER cifrado (formato del SAT) y PKCS#12; acepta además envoltura PEM.
func parsePrivateKey(blob []byte, pass string) (*rsa.PrivateKey, error) {
	der := blob
	if block, _ := pem.Decode(blob); block != nil {
		der = block.Bytes
	}
	if key, err := pkcs8.ParsePKCS8PrivateKeyRSA(der, []byte(pass)); err == nil {
		return key, nil
	}
	if priv, _, err := pkcs12.Decode(blob, pass); err == nil {
		if key, ok := priv.(*rsa.PrivateKey); ok {
			return key, nil
		}
		return nil, fmt.Errorf("el PKCS#12 no contiene llave RSA")
	}
	return nil, fmt.Errorf("llave ilegible o contraseña incorrecta (se probó PKCS#8 y PKCS#12)")
}

// rfcFromSubject extrae el RFC del x500UniqueIdentifier del sujeto.
func rfcFromSubject(cert *x509.Certificate) string {
	for _, name := range cert.Subject.Names {
		if name.Type.Equal(oidRFC) {
			if s, ok := name.Value.(string); ok {
				// Formato "RFC / CURP": interesa solo el RFC
				if idx := strings.Index(s, "/"); idx >= 0 {
					s = s[:idx]
				}
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

package cfdi_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
)

const passDePrueba = "contraseña-csd"

// csdCompleto genera un CSD de prueba completo: certificado autofirmado con el
// RFC en el x500UniqueIdentifier (como los reales del SAT) y la llave privada
// en PKCS#8 DER cifrado con la contraseña de prueba.
func csdCompleto(t *testing.T, secrets cfdi.SecretProvider, rfc string) *entity.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: serialSAT("30001000000400002434"),
		Subject: pkix.Name{
			CommonName: "EMISORA DE PRUEBA",
			ExtraNames: []pkix.AttributeTypeAndValue{{
				Type:  asn1.ObjectIdentifier{2, 5, 4, 45},
				Value: rfc + " / CURP010101HDFAAA01",
			}},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := pkcs8.MarshalPrivateKey(key, []byte(passDePrueba), nil)
	require.NoError(t, err)
	passEnc, err := secrets.EncryptPassphrase(passDePrueba)
	require.NoError(t, err)

	return &entity.Certificate{
		ID: "cert-1", CompanyID: "co-1",
		CerDER: der, KeyDER: keyDER, PassphraseEnc: passEnc,
		ValidFrom: tmpl.NotBefore, ValidTo: tmpl.NotAfter,
		Active: true,
	}
}

func secretsDePrueba(t *testing.T) cfdi.SecretProvider {
	t.Helper()
	p, err := cfdi.NewAESSecretProvider("secreto-de-prueba", "sal")
	require.NoError(t, err)
	return p
}

func TestVault_LoadSigningKey(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "AAA010101AA1")
	vault := cfdi.NewVault(secrets)

	key, err := vault.LoadSigningKey(cert)
	require.NoError(t, err)
	require.NotNil(t, key)

	// La llave cargada firma y el certificado verifica
	res, err := cfdi.Sellar("||4.0|prueba||", key, mustParse(t, cert.CerDER))
	require.NoError(t, err)
	require.NoError(t, cfdi.VerificarSello("||4.0|prueba||", res.Sello, mustParse(t, cert.CerDER)))
}

func TestVault_CertificadoVencido(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "AAA010101AA1")
	cert.ValidTo = time.Now().Add(-time.Hour)

	_, err := cfdi.NewVault(secrets).LoadSigningKey(cert)
	require.Error(t, err)
	var cerr *domain.CertificateError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Reasons, 1)
	assert.Contains(t, cerr.Reasons[0], "vencido")
}

func TestVault_CertificadoInactivo(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "AAA010101AA1")
	cert.Active = false

	_, err := cfdi.NewVault(secrets).LoadSigningKey(cert)
	var cerr *domain.CertificateError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reasons[0], "inactivo")
}

func TestVault_LlaveNoCorresponde(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "AAA010101AA1")

	// Llave de otro par bajo la misma contraseña
	otra, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert.KeyDER, err = pkcs8.MarshalPrivateKey(otra, []byte(passDePrueba), nil)
	require.NoError(t, err)

	_, err = cfdi.NewVault(secrets).LoadSigningKey(cert)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKeyLoad)
}

func TestVault_ContrasenaIncorrecta(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "AAA010101AA1")
	var err error
	cert.PassphraseEnc, err = secrets.EncryptPassphrase("otra-contraseña")
	require.NoError(t, err)

	_, err = cfdi.NewVault(secrets).LoadSigningKey(cert)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKeyLoad)
}

func TestVault_ReadPublicCertificate(t *testing.T) {
	secrets := secretsDePrueba(t)
	cert := csdCompleto(t, secrets, "ÑOPL900101AB1")

	pub, err := cfdi.NewVault(secrets).ReadPublicCertificate(cert)
	require.NoError(t, err)
	// El RFC viene del x500UniqueIdentifier, sin la CURP
	assert.Equal(t, "ÑOPL900101AB1", pub.RFC)
	assert.Equal(t, "30001000000400002434", pub.NoCertificado)
	assert.NotEmpty(t, pub.Base64DER)
}

func mustParse(t *testing.T, der []byte) *x509.Certificate {
	t.Helper()
	c, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return c
}

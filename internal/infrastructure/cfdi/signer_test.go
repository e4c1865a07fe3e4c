package cfdi_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
)

// csdDePrueba genera una llave RSA y un certificado autofirmado con el serial
// dado, al estilo de los CSD del SAT.
func csdDePrueba(t *testing.T, serial *big.Int) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "EMISORA DE PRUEBA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

// serialSAT codifica los 20 dígitos de la serie como ASCII dentro del serial,
// la convención de los CSD reales.
func serialSAT(digits string) *big.Int {
	return new(big.Int).SetBytes([]byte(digits))
}

func TestSellar_YVerificar(t *testing.T) {
	key, cert := csdDePrueba(t, serialSAT("30001000000400002434"))
	cadena := "||4.0|A|101|2026-03-15T12:30:45|03|30001000000400002434|1000.00|MXN|1160.00|I|01|PUE|06000||"

	res, err := cfdi.Sellar(cadena, key, cert)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Sello)
	assert.NotEmpty(t, res.Certificado)
	assert.Equal(t, "30001000000400002434", res.NoCertificado)

	// El sello verifica contra la cadena original exacta
	require.NoError(t, cfdi.VerificarSello(cadena, res.Sello, cert))
	// Cualquier alteración de la cadena invalida la firma
	assert.Error(t, cfdi.VerificarSello(cadena+"x", res.Sello, cert))
}

func TestSellar_Determinista(t *testing.T) {
	// PKCS#1 v1.5 es determinista: misma cadena y llave, mismo sello
	key, cert := csdDePrueba(t, serialSAT("30001000000400002434"))
	a, err := cfdi.Sellar("||4.0|prueba||", key, cert)
	require.NoError(t, err)
	b, err := cfdi.Sellar("||4.0|prueba||", key, cert)
	require.NoError(t, err)
	assert.Equal(t, a.Sello, b.Sello)
}

func TestSellar_Invalido(t *testing.T) {
	key, cert := csdDePrueba(t, serialSAT("30001000000400002434"))

	_, err := cfdi.Sellar("", key, cert)
	assert.ErrorIs(t, err, domain.ErrSigning)

	_, err = cfdi.Sellar("||4.0||", nil, cert)
	assert.ErrorIs(t, err, domain.ErrSigning)

	_, err = cfdi.Sellar("||4.0||", key, nil)
	assert.ErrorIs(t, err, domain.ErrSigning)
}

func TestSATSerial(t *testing.T) {
	// Serial con la convención SAT: hex que decodifica a dígitos ASCII
	_, cert := csdDePrueba(t, serialSAT("30001000000400002434"))
	assert.Equal(t, "30001000000400002434", cfdi.SATSerial(cert))

	// Serial arbitrario: se conserva el hexadecimal tal cual
	_, cert = csdDePrueba(t, big.NewInt(0x1234abcd))
	assert.Equal(t, "1234abcd", cfdi.SATSerial(cert))
}

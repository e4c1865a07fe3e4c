// load_csd registra un Certificado de Sello Digital (CSD) del SAT: lee el .cer
// y el .key, verifica que la llave corresponda al certificado, cifra la
// contraseña con el secreto de aplicación y emite el INSERT SQL listo para la
// tabla certificates.
//
// Uso: go run ./cmd/load_csd -cer csd.cer -key csd.key -company <uuid>
// La contraseña de la llave se lee de CSD_PASSWORD; el secreto de cifrado de
// SAT_APP_SECRET / SAT_SECRET_SALT (los mismos que usa el servicio).
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	infracfdi "github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
)

func main() {
	cerPath := flag.String("cer", "", "ruta al certificado .cer (DER)")
	keyPath := flag.String("key", "", "ruta a la llave privada .key (cifrada)")
	companyID := flag.String("company", "", "ID de la empresa emisora")
	flag.Parse()

	if *cerPath == "" || *keyPath == "" || *companyID == "" {
		flag.Usage()
		os.Exit(2)
	}

	pass := os.Getenv("CSD_PASSWORD")
	if pass == "" {
		fail("CSD_PASSWORD no definido")
	}
	secrets, err := infracfdi.NewAESSecretProvider(os.Getenv("SAT_APP_SECRET"), os.Getenv("SAT_SECRET_SALT"))
	if err != nil {
		fail("inicializar cifrado: %v", err)
	}

	cerDER, err := os.ReadFile(*cerPath)
	if err != nil {
		fail("leer .cer: %v", err)
	}
	keyDER, err := os.ReadFile(*keyPath)
	if err != nil {
		fail("leer .key: %v", err)
	}
	passEnc, err := secrets.EncryptPassphrase(pass)
	if err != nil {
		fail("cifrar contraseña: %v", err)
	}

	vault := infracfdi.NewVault(secrets)
	cert := &entity.Certificate{
		ID:            uuid.New().String(),
		CompanyID:     *companyID,
		CerDER:        cerDER,
		KeyDER:        keyDER,
		PassphraseEnc: passEnc,
		Active:        true,
	}

	pub, err := vault.ReadPublicCertificate(cert)
	if err != nil {
		fail("parsear certificado: %v", err)
	}
	cert.RFC = pub.RFC
	cert.NoCertificado = pub.NoCertificado
	cert.ValidFrom = pub.Cert.NotBefore
	cert.ValidTo = pub.Cert.NotAfter

	// Verificación completa: la llave debe abrir con la contraseña y
	// corresponder al certificado antes de emitir el SQL.
	if _, err := vault.LoadSigningKey(cert); err != nil {
		fail("verificar llave privada: %v", err)
	}

	fmt.Printf("-- CSD %s (RFC %s), vigente %s a %s\n",
		cert.NoCertificado, cert.RFC,
		cert.ValidFrom.Format("2006-01-02"), cert.ValidTo.Format("2006-01-02"))
	fmt.Printf("UPDATE certificates SET active = FALSE, updated_at = NOW() WHERE company_id = '%s' AND active;\n", cert.CompanyID)
	fmt.Printf(`INSERT INTO certificates (id, company_id, rfc, no_certificado, cer_der, key_der, passphrase_enc, valid_from, valid_to, active, created_at, updated_at)
VALUES ('%s', '%s', '%s', '%s', decode('%s','hex'), decode('%s','hex'), decode('%s','hex'), '%s', '%s', TRUE, NOW(), NOW());
`,
		cert.ID, cert.CompanyID, cert.RFC, cert.NoCertificado,
		hex.EncodeToString(cert.CerDER), hex.EncodeToString(cert.KeyDER), hex.EncodeToString(cert.PassphraseEnc),
		cert.ValidFrom.Format(time.RFC3339), cert.ValidTo.Format(time.RFC3339))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo implementación de CertificateRepository.
type CertificateRepo struct {
	q Querier
}

// NewCertificateRepository construye el adaptador.
func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

// Create registra un CSD. Desactiva cualquier otro certificado activo del
// emisor: hay a lo sumo un CSD activo por empresa.
func (r *CertificateRepo) Create(ctx context.Context, cert *entity.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if cert.Active {
		if _, err := r.q.Exec(ctx,
			`UPDATE certificates SET active = FALSE, updated_at = NOW() WHERE company_id = $1 AND active`,
			cert.CompanyID); err != nil {
			return fmt.Errorf("desactivar CSD previos: %w", err)
		}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO certificates (id, company_id, rfc, no_certificado,
			cer_der, key_der, passphrase_enc, valid_from, valid_to, active,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		cert.ID, cert.CompanyID, cert.RFC, cert.NoCertificado,
		cert.CerDER, cert.KeyDER, cert.PassphraseEnc, cert.ValidFrom, cert.ValidTo, cert.Active,
		cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: certificado %s", domain.ErrDuplicate, cert.NoCertificado)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

const certColumns = `
	id, company_id, rfc, no_certificado, cer_der, key_der, passphrase_enc,
	valid_from, valid_to, active, created_at, updated_at`

// GetByID obtiene un certificado por ID.
func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	return r.scan(r.q.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id))
}

// GetActiveByCompany devuelve el CSD activo del emisor.
func (r *CertificateRepo) GetActiveByCompany(ctx context.Context, companyID string) (*entity.Certificate, error) {
	return r.scan(r.q.QueryRow(ctx, `
		SELECT `+certColumns+` FROM certificates
		WHERE company_id = $1 AND active
		ORDER BY valid_to DESC LIMIT 1`, companyID))
}

func (r *CertificateRepo) scan(row pgx.Row) (*entity.Certificate, error) {
	var c entity.Certificate
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.RFC, &c.NoCertificado, &c.CerDER, &c.KeyDER, &c.PassphraseEnc,
		&c.ValidFrom, &c.ValidTo, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: certificado de sello digital", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &c, nil
}

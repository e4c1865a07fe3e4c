package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// CertificateRepository acceso a certificados de sello digital (CSD).
type CertificateRepository interface {
	Create(ctx context.Context, cert *entity.Certificate) error
	GetByID(ctx context.Context, id string) (*entity.Certificate, error)
	// GetActiveByCompany devuelve el CSD activo del emisor (domain.ErrNotFound si no hay).
	GetActiveByCompany(ctx context.Context, companyID string) (*entity.Certificate, error)
}

package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// CompanyRepository acceso a emisores.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

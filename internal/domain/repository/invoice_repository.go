package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// InvoiceRepository acceso a comprobantes y sus conceptos.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateConcepto(ctx context.Context, concepto *entity.Concepto) error

	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetForUpdate obtiene el comprobante con bloqueo de fila (FOR UPDATE);
	// solo tiene sentido dentro de una transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error)
	GetConceptosByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.Concepto, error)

	// Update persiste los campos del pipeline fiscal (estado, XML, sello,
	// UUID, cancelación). Los montos no se tocan después de crear.
	Update(ctx context.Context, invoice *entity.Invoice) error
}

package billing

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

// TxRunner ejecuta un callback con un repositorio de comprobantes atado a una
// transacción PostgreSQL. El commit fiscal (estado + UUID + XML timbrado) es
// atómico: ocurre completo o no ocurre.
type TxRunner interface {
	RunInvoice(ctx context.Context, fn func(invoices repository.InvoiceRepository) error) error
}

// EventPublisher publica los hechos fiscales DESPUÉS del commit. Un error al
// publicar nunca revierte el timbrado ni la cancelación: solo se registra.
type EventPublisher interface {
	PublishStamped(ctx context.Context, ev StampedEvent) error
	PublishCancelled(ctx context.Context, ev CancelledEvent) error
}

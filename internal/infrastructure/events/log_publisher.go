// Package events implementa el publicador de hechos fiscales post-commit.
package events

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

var _ billing.EventPublisher = (*LogPublisher)(nil)

// LogPublisher publica los eventos al log estructurado. Sirve como integración
// mínima para el colaborador contable; un broker real puede sustituirlo
// implementando billing.EventPublisher.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher construye el publicador.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// PublishStamped emite el evento de timbrado.
func (p *LogPublisher) PublishStamped(ctx context.Context, ev billing.StampedEvent) error {
	p.log.Info().
		Str("evento", "comprobante_timbrado").
		Str("invoice_id", ev.InvoiceID).
		Str("company_id", ev.CompanyID).
		Str("uuid", ev.UUID).
		Time("fecha_timbrado", ev.FechaTimbrado).
		Msg("evento fiscal publicado")
	return nil
}

// PublishCancelled emite el evento de cancelación.
func (p *LogPublisher) PublishCancelled(ctx context.Context, ev billing.CancelledEvent) error {
	p.log.Info().
		Str("evento", "comprobante_cancelado").
		Str("invoice_id", ev.InvoiceID).
		Str("company_id", ev.CompanyID).
		Str("uuid", ev.UUID).
		Str("motivo", ev.Motivo).
		Msg("evento fiscal publicado")
	return nil
}

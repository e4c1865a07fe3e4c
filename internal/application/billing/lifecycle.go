package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	domcfdi "github.com/jhoicas/Facturacion-api/internal/domain/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	infracfdi "github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/pac"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
	"github.com/jhoicas/Facturacion-api/pkg/sat"
)

// Lifecycle orquesta el ciclo fiscal completo del comprobante:
//
//	Validar → XML CFDI 4.0 → Cadena original → Sello CSD → Timbrado PAC → Commit DB
//
// y la cancelación ante el SAT. Las operaciones de cómputo y red ocurren fuera
// de la transacción; el commit fiscal (estado + UUID + XML timbrado) es atómico
// y el documento queda serializado por un mutex en proceso más el bloqueo de
// fila FOR UPDATE.
type Lifecycle struct {
	invoices  repository.InvoiceRepository
	companies repository.CompanyRepository
	customers repository.CustomerRepository
	certs     repository.CertificateRepository

	builder *infracfdi.XMLBuilderService
	vault   *infracfdi.Vault
	stamper pac.Stamper

	tx     TxRunner
	events EventPublisher // puede ser nil
	log    *logger.Logger

	pacTimeout time.Duration
	locks      keyedMutex
}

// NewLifecycle construye el orquestador con todas sus dependencias.
// events puede ser nil: en ese caso no se publican eventos.
func NewLifecycle(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	customers repository.CustomerRepository,
	certs repository.CertificateRepository,
	builder *infracfdi.XMLBuilderService,
	vault *infracfdi.Vault,
	stamper pac.Stamper,
	tx TxRunner,
	events EventPublisher,
	log *logger.Logger,
	pacTimeout time.Duration,
) *Lifecycle {
	if pacTimeout <= 0 {
		pacTimeout = 30 * time.Second
	}
	return &Lifecycle{
		invoices:   invoices,
		companies:  companies,
		customers:  customers,
		certs:      certs,
		builder:    builder,
		vault:      vault,
		stamper:    stamper,
		tx:         tx,
		events:     events,
		log:        log,
		pacTimeout: pacTimeout,
	}
}

// Timbrar ejecuta el pipeline de timbrado de un comprobante en BORRADOR o
// ERROR. Cualquier falla antes del envío al PAC deja el comprobante en ERROR
// con el diagnóstico en LastError; un timeout del PAC marca además
// ReconciliarPAC para forzar la consulta de estado antes del siguiente intento.
func (l *Lifecycle) Timbrar(ctx context.Context, companyID, invoiceID string) (*entity.Invoice, error) {
	unlock := l.locks.lock(invoiceID)
	defer unlock()

	inv, err := l.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	if !inv.Timbrable() {
		return nil, fmt.Errorf("%w: estado %q no admite timbrado", domain.ErrStateConflict, inv.Status)
	}

	// Tras un timeout el desenlace del intento anterior es desconocido: se
	// consulta el PAC antes de reenviar. Los PAC deduplican por sello, por lo
	// que un reenvío del mismo documento devuelve el mismo timbre.
	if inv.ReconciliarPAC && inv.UUID != "" {
		qctx, cancel := context.WithTimeout(ctx, l.pacTimeout)
		st, qErr := l.stamper.Query(qctx, inv.UUID)
		cancel()
		if qErr != nil {
			return nil, l.markError(ctx, invoiceID, "reconciliacion", qErr)
		}
		if st.Cancelado {
			return nil, l.markError(ctx, invoiceID, "reconciliacion",
				fmt.Errorf("%w: el PAC reporta el UUID %s como cancelado", domain.ErrStateConflict, inv.UUID))
		}
		if st.Timbrado {
			l.log.Info().Str("invoice_id", invoiceID).Str("uuid", inv.UUID).
				Msg("comprobante ya timbrado según el PAC; el reenvío recupera el timbre")
		}
	}

	company, err := l.companies.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "fetch-emisor", err)
	}
	customer, err := l.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "fetch-receptor", err)
	}
	conceptos, err := l.invoices.GetConceptosByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "fetch-conceptos", err)
	}

	if err := domcfdi.ValidateComprobante(inv, conceptos); err != nil {
		return nil, l.markError(ctx, invoiceID, "validacion", err)
	}

	// ── CSD: certificado activo del emisor, llave descifrada ─────────────────
	cert, err := l.certs.GetActiveByCompany(ctx, inv.CompanyID)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "csd", err)
	}
	pub, err := l.vault.ReadPublicCertificate(cert)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "csd", err)
	}
	if emisorRFC := sat.NormalizeRFC(company.RFC); pub.RFC != "" && pub.RFC != emisorRFC {
		return nil, l.markError(ctx, invoiceID, "csd",
			fmt.Errorf("%w: el CSD pertenece a %s, no al emisor %s", domain.ErrKeyLoad, pub.RFC, emisorRFC))
	}
	key, err := l.vault.LoadSigningKey(cert)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "csd", err)
	}

	// ── Composición y sellado ─────────────────────────────────────────────────
	xmlSinSello, err := l.builder.Build(&infracfdi.ComprobanteContext{
		Invoice:   inv,
		Company:   company,
		Customer:  customer,
		Conceptos: conceptos,
	})
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "xml", err)
	}
	// NoCertificado entra en la cadena original: se incrusta antes de derivarla
	xmlConCert, err := l.builder.EmbedSello(xmlSinSello, "", pub.NoCertificado, pub.Base64DER)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "xml", err)
	}
	cadena, err := infracfdi.BuildCadenaOriginal(xmlConCert)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "cadena", err)
	}
	sello, err := infracfdi.Sellar(cadena, key, pub.Cert)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "sello", err)
	}
	xmlSellado, err := l.builder.EmbedSello(xmlConCert, sello.Sello, sello.NoCertificado, sello.Certificado)
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "sello", err)
	}

	// ── Timbrado en el PAC (fuera de la transacción) ──────────────────────────
	sctx, cancel := context.WithTimeout(ctx, l.pacTimeout)
	res, err := l.stamper.Stamp(sctx, xmlSellado)
	cancel()
	if err != nil {
		return nil, l.markError(ctx, invoiceID, "timbrado", err)
	}

	// ── Commit fiscal atómico ─────────────────────────────────────────────────
	var updated *entity.Invoice
	err = l.tx.RunInvoice(ctx, func(invoices repository.InvoiceRepository) error {
		cur, err := invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !cur.Timbrable() {
			return fmt.Errorf("%w: el comprobante cambió a %q durante el timbrado", domain.ErrStateConflict, cur.Status)
		}
		if cur.UUID != "" && cur.UUID != res.UUID {
			return fmt.Errorf("%w: UUID ya asignado (%s) difiere del timbre recibido (%s)",
				domain.ErrStateConflict, cur.UUID, res.UUID)
		}
		fecha := res.FechaTimbrado
		cur.Status = entity.StatusTimbrada
		cur.UUID = res.UUID
		cur.XMLUnsigned = string(xmlConCert)
		cur.CadenaOriginal = cadena
		cur.Sello = sello.Sello
		cur.NoCertificado = sello.NoCertificado
		cur.XMLTimbrado = string(res.XMLTimbrado)
		cur.SelloSAT = res.SelloSAT
		cur.FechaTimbrado = &fecha
		cur.LastError = ""
		cur.ReconciliarPAC = false
		cur.UpdatedAt = time.Now()
		if err := invoices.Update(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("invoice_id", invoiceID).Str("uuid", updated.UUID).
		Msg("comprobante timbrado")
	l.publishStamped(ctx, updated)
	return updated, nil
}

// Cancelar solicita la cancelación del comprobante ante el SAT vía el PAC.
// Valida motivo y folio de sustitución ANTES de llamar al proveedor; un fallo
// del PAC deja el comprobante TIMBRADA sin cambios.
func (l *Lifecycle) Cancelar(ctx context.Context, companyID, invoiceID, motivo, folioSustitucion string) (*entity.Invoice, error) {
	unlock := l.locks.lock(invoiceID)
	defer unlock()

	if err := domcfdi.ValidateCancelacion(motivo, folioSustitucion); err != nil {
		return nil, err
	}

	inv, err := l.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	if !inv.Cancelable() {
		return nil, fmt.Errorf("%w: estado %q no admite cancelación", domain.ErrStateConflict, inv.Status)
	}

	company, err := l.companies.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, l.pacTimeout)
	res, err := l.stamper.Cancel(cctx, pac.CancelRequest{
		UUID:             inv.UUID,
		RFC:              sat.NormalizeRFC(company.RFC),
		Motivo:           motivo,
		FolioSustitucion: folioSustitucion,
	})
	cancel()
	if err != nil {
		l.log.Warn().Err(err).Str("invoice_id", invoiceID).Str("uuid", inv.UUID).
			Msg("cancelación rechazada o fallida; el comprobante sigue TIMBRADA")
		return nil, err
	}

	var updated *entity.Invoice
	err = l.tx.RunInvoice(ctx, func(invoices repository.InvoiceRepository) error {
		cur, err := invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !cur.Cancelable() {
			return fmt.Errorf("%w: el comprobante cambió a %q durante la cancelación", domain.ErrStateConflict, cur.Status)
		}
		now := time.Now()
		cur.Status = entity.StatusCancelada
		cur.MotivoCancelacion = motivo
		cur.FolioSustitucion = folioSustitucion
		cur.AcuseCancelacion = res.Acuse
		cur.CanceladaAt = &now
		cur.UpdatedAt = now
		if err := invoices.Update(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("invoice_id", invoiceID).Str("uuid", updated.UUID).Str("motivo", motivo).
		Msg("comprobante cancelado ante el SAT")
	l.publishCancelled(ctx, updated)
	return updated, nil
}

// markError persiste el estado ERROR con el diagnóstico del paso que falló y
// devuelve el error original. Un timeout del PAC marca además ReconciliarPAC.
func (l *Lifecycle) markError(ctx context.Context, invoiceID, step string, cause error) error {
	timeout := domain.IsGatewayTimeout(cause)
	txErr := l.tx.RunInvoice(ctx, func(invoices repository.InvoiceRepository) error {
		cur, err := invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !cur.Timbrable() {
			// Otro proceso concluyó el timbrado mientras tanto: no pisar su estado
			return nil
		}
		cur.Status = entity.StatusError
		cur.LastError = fmt.Sprintf("[%s] %v", step, cause)
		if timeout {
			cur.ReconciliarPAC = true
		}
		cur.UpdatedAt = time.Now()
		return invoices.Update(ctx, cur)
	})
	if txErr != nil {
		l.log.Error().Err(txErr).Str("invoice_id", invoiceID).
			Msg("no se pudo persistir el estado ERROR")
	}
	l.log.Error().Err(cause).Str("invoice_id", invoiceID).Str("paso", step).
		Bool("reconciliar_pac", timeout).Msg("fallo en el pipeline de timbrado")
	return cause
}

func (l *Lifecycle) publishStamped(ctx context.Context, inv *entity.Invoice) {
	if l.events == nil {
		return
	}
	ev := StampedEvent{
		InvoiceID: inv.ID,
		CompanyID: inv.CompanyID,
		UUID:      inv.UUID,
		Serie:     inv.Serie,
		Folio:     inv.Folio,
	}
	if inv.FechaTimbrado != nil {
		ev.FechaTimbrado = *inv.FechaTimbrado
	}
	if err := l.events.PublishStamped(ctx, ev); err != nil {
		l.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo publicar evento de timbrado")
	}
}

func (l *Lifecycle) publishCancelled(ctx context.Context, inv *entity.Invoice) {
	if l.events == nil {
		return
	}
	ev := CancelledEvent{
		InvoiceID:        inv.ID,
		CompanyID:        inv.CompanyID,
		UUID:             inv.UUID,
		Motivo:           inv.MotivoCancelacion,
		FolioSustitucion: inv.FolioSustitucion,
	}
	if inv.CanceladaAt != nil {
		ev.CanceladaAt = *inv.CanceladaAt
	}
	if err := l.events.PublishCancelled(ctx, ev); err != nil {
		l.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo publicar evento de cancelación")
	}
}

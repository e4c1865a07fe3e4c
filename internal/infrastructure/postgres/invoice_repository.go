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

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, company_id, customer_id, serie, folio, fecha,
	forma_pago, metodo_pago, uso_cfdi, lugar_expedicion,
	moneda, tipo_cambio, subtotal, descuento, total, status,
	uuid, xml_unsigned, cadena_original, sello, no_certificado,
	xml_timbrado, sello_sat, fecha_timbrado,
	motivo_cancelacion, folio_sustitucion, acuse_cancelacion, cancelada_at,
	last_error, reconciliar_pac, created_at, updated_at`

// Create persiste la cabecera del comprobante en BORRADOR.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, company_id, customer_id, serie, folio, fecha,
			forma_pago, metodo_pago, uso_cfdi, lugar_expedicion,
			moneda, tipo_cambio, subtotal, descuento, total, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.CompanyID, inv.CustomerID, nullIfEmpty(inv.Serie), nullIfEmpty(inv.Folio), inv.Fecha,
		inv.FormaPago, inv.MetodoPago, inv.UsoCFDI, inv.LugarExpedicion,
		inv.Moneda, inv.TipoCambio, inv.SubTotal, inv.Descuento, inv.Total, inv.Status,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: serie/folio ya registrados", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateConcepto persiste una línea del comprobante con sus impuestos.
func (r *InvoiceRepo) CreateConcepto(ctx context.Context, c *entity.Concepto) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO conceptos (id, invoice_id, clave_prod_serv, no_identificacion,
			clave_unidad, unidad, descripcion, cantidad, valor_unitario, descuento,
			importe, objeto_imp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.InvoiceID, c.ClaveProdServ, nullIfEmpty(c.NoIdentificacion),
		c.ClaveUnidad, nullIfEmpty(c.Unidad), c.Descripcion, c.Cantidad, c.ValorUnitario, c.Descuento,
		c.Importe, c.ObjetoImp,
	)
	if err != nil {
		return fmt.Errorf("insert concepto: %w", err)
	}
	for i := range c.Impuestos {
		imp := &c.Impuestos[i]
		if imp.ID == "" {
			imp.ID = uuid.New().String()
		}
		imp.ConceptoID = c.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO concepto_impuestos (id, concepto_id, tipo, base, impuesto, tipo_factor, tasa_o_cuota, importe)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			imp.ID, imp.ConceptoID, imp.Tipo, imp.Base, imp.Impuesto, imp.TipoFactor, imp.TasaOCuota, imp.Importe,
		)
		if err != nil {
			return fmt.Errorf("insert concepto impuesto: %w", err)
		}
	}
	return nil
}

// GetByID obtiene un comprobante completo por ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return r.scanInvoice(r.q.QueryRow(ctx, query, id))
}

// GetForUpdate obtiene el comprobante con bloqueo de fila. Solo tiene sentido
// cuando el Querier es una transacción.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return r.scanInvoice(r.q.QueryRow(ctx, query, id))
}

func (r *InvoiceRepo) scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var serie, folio, uuidFiscal, xmlUnsigned, cadena, sello, noCert *string
	var xmlTimbrado, selloSAT, motivo, folioSust, acuse, lastError *string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.CustomerID, &serie, &folio, &inv.Fecha,
		&inv.FormaPago, &inv.MetodoPago, &inv.UsoCFDI, &inv.LugarExpedicion,
		&inv.Moneda, &inv.TipoCambio, &inv.SubTotal, &inv.Descuento, &inv.Total, &inv.Status,
		&uuidFiscal, &xmlUnsigned, &cadena, &sello, &noCert,
		&xmlTimbrado, &selloSAT, &inv.FechaTimbrado,
		&motivo, &folioSust, &acuse, &inv.CanceladaAt,
		&lastError, &inv.ReconciliarPAC, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: comprobante", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.Serie = derefStr(serie)
	inv.Folio = derefStr(folio)
	inv.UUID = derefStr(uuidFiscal)
	inv.XMLUnsigned = derefStr(xmlUnsigned)
	inv.CadenaOriginal = derefStr(cadena)
	inv.Sello = derefStr(sello)
	inv.NoCertificado = derefStr(noCert)
	inv.XMLTimbrado = derefStr(xmlTimbrado)
	inv.SelloSAT = derefStr(selloSAT)
	inv.MotivoCancelacion = derefStr(motivo)
	inv.FolioSustitucion = derefStr(folioSust)
	inv.AcuseCancelacion = derefStr(acuse)
	inv.LastError = derefStr(lastError)
	return &inv, nil
}

// GetConceptosByInvoiceID obtiene todas las líneas del comprobante con sus
// impuestos, en orden estable de inserción.
func (r *InvoiceRepo) GetConceptosByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.Concepto, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, clave_prod_serv, COALESCE(no_identificacion, ''),
		       clave_unidad, COALESCE(unidad, ''), descripcion,
		       cantidad, valor_unitario, descuento, importe, objeto_imp
		FROM conceptos WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list conceptos: %w", err)
	}
	defer rows.Close()

	var list []*entity.Concepto
	for rows.Next() {
		var c entity.Concepto
		if err := rows.Scan(&c.ID, &c.InvoiceID, &c.ClaveProdServ, &c.NoIdentificacion,
			&c.ClaveUnidad, &c.Unidad, &c.Descripcion,
			&c.Cantidad, &c.ValorUnitario, &c.Descuento, &c.Importe, &c.ObjetoImp); err != nil {
			return nil, fmt.Errorf("scan concepto: %w", err)
		}
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range list {
		impuestos, err := r.getImpuestos(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Impuestos = impuestos
	}
	return list, nil
}

func (r *InvoiceRepo) getImpuestos(ctx context.Context, conceptoID string) ([]entity.ConceptoImpuesto, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, concepto_id, tipo, base, impuesto, tipo_factor, tasa_o_cuota, importe
		FROM concepto_impuestos WHERE concepto_id = $1 ORDER BY id`, conceptoID)
	if err != nil {
		return nil, fmt.Errorf("list concepto impuestos: %w", err)
	}
	defer rows.Close()

	var list []entity.ConceptoImpuesto
	for rows.Next() {
		var ci entity.ConceptoImpuesto
		if err := rows.Scan(&ci.ID, &ci.ConceptoID, &ci.Tipo, &ci.Base, &ci.Impuesto,
			&ci.TipoFactor, &ci.TasaOCuota, &ci.Importe); err != nil {
			return nil, fmt.Errorf("scan concepto impuesto: %w", err)
		}
		list = append(list, ci)
	}
	return list, rows.Err()
}

// Update persiste los campos del pipeline fiscal. Los montos y datos de
// captura no se tocan después de Create.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET status             = $2,
		    uuid               = COALESCE($3, uuid),
		    xml_unsigned       = COALESCE($4, xml_unsigned),
		    cadena_original    = COALESCE($5, cadena_original),
		    sello              = COALESCE($6, sello),
		    no_certificado     = COALESCE($7, no_certificado),
		    xml_timbrado       = COALESCE($8, xml_timbrado),
		    sello_sat          = COALESCE($9, sello_sat),
		    fecha_timbrado     = COALESCE($10, fecha_timbrado),
		    motivo_cancelacion = COALESCE($11, motivo_cancelacion),
		    folio_sustitucion  = COALESCE($12, folio_sustitucion),
		    acuse_cancelacion  = COALESCE($13, acuse_cancelacion),
		    cancelada_at       = COALESCE($14, cancelada_at),
		    last_error         = $15,
		    reconciliar_pac    = $16,
		    updated_at         = $17
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		inv.ID,
		inv.Status,
		nullIfEmpty(inv.UUID),
		nullIfEmpty(inv.XMLUnsigned),
		nullIfEmpty(inv.CadenaOriginal),
		nullIfEmpty(inv.Sello),
		nullIfEmpty(inv.NoCertificado),
		nullIfEmpty(inv.XMLTimbrado),
		nullIfEmpty(inv.SelloSAT),
		inv.FechaTimbrado,
		nullIfEmpty(inv.MotivoCancelacion),
		nullIfEmpty(inv.FolioSustitucion),
		nullIfEmpty(inv.AcuseCancelacion),
		inv.CanceladaAt,
		inv.LastError,
		inv.ReconciliarPAC,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: comprobante", domain.ErrNotFound)
	}
	return nil
}

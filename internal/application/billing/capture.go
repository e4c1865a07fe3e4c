package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	domcfdi "github.com/jhoicas/Facturacion-api/internal/domain/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/sat"
)

// CaptureUseCase crea comprobantes en BORRADOR con sus conceptos e impuestos.
// Los importes se calculan aquí (Importe = Cantidad × ValorUnitario − Descuento,
// impuesto = Base × TasaOCuota) para que la invariante aritmética del
// comprobante se cumpla por construcción.
type CaptureUseCase struct {
	tx        TxRunner
	invoices  repository.InvoiceRepository
	customers repository.CustomerRepository
}

// NewCaptureUseCase construye el caso de uso.
func NewCaptureUseCase(tx TxRunner, invoices repository.InvoiceRepository, customers repository.CustomerRepository) *CaptureUseCase {
	return &CaptureUseCase{tx: tx, invoices: invoices, customers: customers}
}

// CreateInvoice valida la captura, deriva importes y totales y persiste
// cabecera y conceptos en una sola transacción. El comprobante queda BORRADOR.
func (uc *CaptureUseCase) CreateInvoice(ctx context.Context, companyID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if in.CustomerID == "" || len(in.Conceptos) == 0 {
		return nil, domain.ErrInvalidInput
	}

	customer, err := uc.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}

	usoCFDI := in.UsoCFDI
	if usoCFDI == "" {
		usoCFDI = customer.UsoCFDIDefault
	}
	moneda := in.Moneda
	if moneda == "" {
		moneda = sat.MonedaMXN
	}
	if moneda != sat.MonedaMXN && !in.TipoCambio.IsPositive() {
		return nil, domain.NewValidationError("tipoCambio", "requerido cuando la moneda no es MXN")
	}

	now := time.Now()
	inv := &entity.Invoice{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		CustomerID: in.CustomerID,
		Serie:      in.Serie,
		Folio:      in.Folio,
		Fecha:      now,
		FormaPago:  in.FormaPago,
		MetodoPago: in.MetodoPago,
		UsoCFDI:    usoCFDI,
		Moneda:     moneda,
		TipoCambio: in.TipoCambio,
		Status:     entity.StatusBorrador,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	conceptos := make([]*entity.Concepto, 0, len(in.Conceptos))
	var subtotal decimal.Decimal
	for _, cr := range in.Conceptos {
		if !cr.Cantidad.IsPositive() || cr.ValorUnitario.IsNegative() || cr.Descuento.IsNegative() {
			return nil, domain.NewValidationError("conceptos", "cantidad debe ser positiva y montos no negativos")
		}
		importe := cr.Cantidad.Mul(cr.ValorUnitario).Sub(cr.Descuento).Round(2)
		c := &entity.Concepto{
			ID:               uuid.New().String(),
			InvoiceID:        inv.ID,
			ClaveProdServ:    cr.ClaveProdServ,
			NoIdentificacion: cr.NoIdentificacion,
			ClaveUnidad:      cr.ClaveUnidad,
			Unidad:           cr.Unidad,
			Descripcion:      cr.Descripcion,
			Cantidad:         cr.Cantidad,
			ValorUnitario:    cr.ValorUnitario,
			Descuento:        cr.Descuento,
			Importe:          importe,
			ObjetoImp:        cr.ObjetoImp,
		}
		for _, ir := range cr.Impuestos {
			ci := entity.ConceptoImpuesto{
				Tipo:       ir.Tipo,
				Base:       importe,
				Impuesto:   ir.Impuesto,
				TipoFactor: ir.TipoFactor,
			}
			if !ci.Exento() {
				ci.TasaOCuota = ir.TasaOCuota
				ci.Importe = importe.Mul(ir.TasaOCuota).Round(2)
			}
			c.Impuestos = append(c.Impuestos, ci)
		}
		conceptos = append(conceptos, c)
		subtotal = subtotal.Add(importe)
	}

	resumen := domcfdi.ResumirImpuestos(conceptos)
	inv.SubTotal = subtotal.Round(2)
	inv.Descuento = decimal.Zero // descuentos ya restados en Importe por línea
	inv.Total = inv.SubTotal.Add(resumen.TotalTrasladados).Sub(resumen.TotalRetenidos).Round(2)

	if err := domcfdi.ValidateComprobante(inv, conceptos); err != nil {
		return nil, err
	}

	err = uc.tx.RunInvoice(ctx, func(invoices repository.InvoiceRepository) error {
		if err := invoices.Create(ctx, inv); err != nil {
			return err
		}
		for _, c := range conceptos {
			if err := invoices.CreateConcepto(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// GetInvoice obtiene un comprobante del emisor autenticado.
func (uc *CaptureUseCase) GetInvoice(ctx context.Context, companyID, id string) (*entity.Invoice, error) {
	inv, err := uc.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// ToInvoiceResponse proyecta la entidad al DTO de respuesta.
func ToInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	return &dto.InvoiceResponse{
		ID:                inv.ID,
		CompanyID:         inv.CompanyID,
		CustomerID:        inv.CustomerID,
		Serie:             inv.Serie,
		Folio:             inv.Folio,
		Fecha:             inv.Fecha.Format(time.RFC3339),
		FormaPago:         inv.FormaPago,
		MetodoPago:        inv.MetodoPago,
		UsoCFDI:           inv.UsoCFDI,
		Moneda:            inv.Moneda,
		SubTotal:          inv.SubTotal,
		Descuento:         inv.Descuento,
		Total:             inv.Total,
		Status:            inv.Status,
		UUID:              inv.UUID,
		NoCertificado:     inv.NoCertificado,
		FechaTimbrado:     inv.FechaTimbrado,
		MotivoCancelacion: inv.MotivoCancelacion,
		FolioSustitucion:  inv.FolioSustitucion,
		CanceladaAt:       inv.CanceladaAt,
		LastError:         inv.LastError,
		ReconciliarPAC:    inv.ReconciliarPAC,
	}
}

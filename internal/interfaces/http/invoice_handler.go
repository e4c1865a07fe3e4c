package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// InvoiceHandler maneja las peticiones HTTP de facturación (protegido).
type InvoiceHandler struct {
	capture   *billing.CaptureUseCase
	lifecycle *billing.Lifecycle
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(capture *billing.CaptureUseCase, lifecycle *billing.Lifecycle) *InvoiceHandler {
	return &InvoiceHandler{capture: capture, lifecycle: lifecycle}
}

// Create crea un comprobante en BORRADOR.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	invoice, err := h.capture.CreateInvoice(c.Context(), companyID, in)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// GetByID obtiene un comprobante.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	inv, err := h.capture.GetInvoice(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(billing.ToInvoiceResponse(inv))
}

// Timbrar ejecuta el pipeline de sellado y timbrado.
// POST /api/invoices/:id/timbrar
func (h *InvoiceHandler) Timbrar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	inv, err := h.lifecycle.Timbrar(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(billing.ToInvoiceResponse(inv))
}

// Cancelar solicita la cancelación ante el SAT.
// POST /api/invoices/:id/cancelar
func (h *InvoiceHandler) Cancelar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	var in dto.CancelInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	inv, err := h.lifecycle.Cancelar(c.Context(), companyID, c.Params("id"), in.Motivo, in.FolioSustitucion)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(billing.ToInvoiceResponse(inv))
}

// GetXML descarga el XML del comprobante: el timbrado si existe, si no el
// generado sin timbre.
// GET /api/invoices/:id/xml
func (h *InvoiceHandler) GetXML(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	inv, err := h.capture.GetInvoice(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	xml := inv.XMLTimbrado
	if xml == "" {
		xml = inv.XMLUnsigned
	}
	if xml == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "el comprobante aún no tiene XML generado"})
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.SendString(xml)
}

// GetCadena devuelve la cadena original firmada (auditoría).
// GET /api/invoices/:id/cadena
func (h *InvoiceHandler) GetCadena(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	inv, err := h.capture.GetInvoice(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	if inv.CadenaOriginal == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "el comprobante aún no tiene cadena original"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(inv.CadenaOriginal)
}

// mapError traduce errores de dominio a códigos HTTP.
func mapError(c *fiber.Ctx, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: vErr.Error()})
	}
	var cErr *domain.CertificateError
	if errors.As(err, &cErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CSD_INVALID", Message: cErr.Error()})
	}
	var gErr *domain.GatewayError
	if errors.As(err, &gErr) {
		code := "PAC_" + gErr.Kind
		if gErr.Kind == domain.GatewayTimeout {
			return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: code, Message: gErr.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: code, Message: gErr.Error()})
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrStateConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "STATE_CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrKeyLoad), errors.Is(err, domain.ErrSigning):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "SIGNING", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

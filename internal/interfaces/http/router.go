package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Capture   *billing.CaptureUseCase
	Lifecycle *billing.Lifecycle
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.Capture, deps.Lifecycle)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/xml", invoiceHandler.GetXML)
	invoices.Get("/:id/cadena", invoiceHandler.GetCadena)

	// Operaciones fiscales: solo roles con facultad de facturar
	fiscal := invoices.Group("/", RequireRole("admin", "facturista"))
	fiscal.Post("/:id/timbrar", invoiceHandler.Timbrar)
	fiscal.Post("/:id/cancelar", invoiceHandler.Cancelar)
}

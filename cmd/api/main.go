package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	infracfdi "github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/events"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/pac"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Facturacion-api/internal/interfaces/http"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("pac", cfg.SAT.PACProvider).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Pipeline CFDI: composer + bóveda de CSD + proveedor de timbrado
	xmlBuilder := infracfdi.NewXMLBuilderService()
	secrets, err := infracfdi.NewAESSecretProvider(cfg.SAT.AppSecret, cfg.SAT.SecretSalt)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar cifrado de secretos CSD")
	}
	vault := infracfdi.NewVault(secrets)

	stamper, err := pac.New(pac.Config{
		Provider: cfg.SAT.PACProvider,
		URL:      cfg.SAT.PACURL,
		Usuario:  cfg.SAT.PACUser,
		Password: cfg.SAT.PACPassword,
		Timeout:  cfg.SAT.PACTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar proveedor de timbrado")
	}

	lifecycle := billing.NewLifecycle(
		invoiceRepo, companyRepo, customerRepo, certRepo,
		xmlBuilder, vault, stamper,
		txRunner, events.NewLogPublisher(log), log,
		cfg.SAT.PACTimeout,
	)
	capture := billing.NewCaptureUseCase(txRunner, invoiceRepo, customerRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Capture:   capture,
		Lifecycle: lifecycle,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

package pac

import (
	"fmt"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/domain"
)

// Nombres de proveedor reconocidos (valor de SAT_PAC_PROVIDER).
const (
	ProviderSimulador = "simulador" // Sin red: timbre sintético determinista
	ProviderConector  = "conector"  // PAC real vía SOAP
)

// Config configuración del proveedor activo.
type Config struct {
	Provider string // simulador | conector
	URL      string // Endpoint del PAC (solo conector)
	Usuario  string
	Password string
	Timeout  time.Duration // Timeout de red por llamada
}

// New resuelve la variante activa a partir de la configuración. Un nombre de
// proveedor no reconocido falla de inmediato: nunca se degrada en silencio a
// otra variante.
func New(cfg Config) (Stamper, error) {
	switch cfg.Provider {
	case ProviderSimulador:
		return NewSimulador(), nil
	case ProviderConector:
		if cfg.URL == "" {
			return nil, fmt.Errorf("pac: SAT_PAC_URL requerido para el proveedor %q", cfg.Provider)
		}
		return NewConectorSOAP(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q (usar %s|%s)", domain.ErrUnknownPAC, cfg.Provider, ProviderSimulador, ProviderConector)
	}
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrInvalidInput  = errors.New("entrada inválida")
	ErrDuplicate     = errors.New("recurso duplicado")
	ErrUnauthorized  = errors.New("no autorizado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrStateConflict = errors.New("conflicto con el estado actual del comprobante")
	ErrKeyLoad       = errors.New("no se pudo cargar la llave privada del CSD")
	ErrSigning       = errors.New("fallo criptográfico al sellar")
	ErrUnknownPAC    = errors.New("proveedor de timbrado desconocido")
)

// ValidationError error de validación con campo y motivo (para la UI).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validación: " + e.Reason
	}
	return fmt.Sprintf("validación: %s: %s", e.Field, e.Reason)
}

// NewValidationError construye un ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// CertificateError certificado no usable para sellar; Reasons lista cada causa
// (vencido, aún no vigente, inactivo). Nunca incluye material de llaves.
type CertificateError struct {
	Reasons []string
}

func (e *CertificateError) Error() string {
	return "certificado inválido: " + strings.Join(e.Reasons, "; ")
}

// Clases de error del gateway de timbrado (PAC).
const (
	GatewayTimeout         = "TIMEOUT"
	GatewayProviderFault   = "PROVIDER_FAULT"
	GatewayInvalidResponse = "INVALID_RESPONSE"
)

// GatewayError error normalizado del PAC. Message es el mensaje crudo del
// proveedor para auditoría; Kind clasifica para el retry y la reconciliación.
type GatewayError struct {
	Kind     string // TIMEOUT | PROVIDER_FAULT | INVALID_RESPONSE
	Provider string
	Message  string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("pac %s [%s]: %s", e.Provider, e.Kind, e.Message)
}

// IsGatewayTimeout reporta si err es un GatewayError de clase TIMEOUT.
func IsGatewayTimeout(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == GatewayTimeout
}

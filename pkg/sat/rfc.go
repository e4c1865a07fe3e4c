package sat

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RFCs genéricos definidos por el SAT.
const (
	RFCGenericoNacional   = "XAXX010101000" // Público en general
	RFCGenericoExtranjero = "XEXX010101000" // Residentes en el extranjero
)

// rfcPattern: 3 letras (moral) o 4 (física) + fecha AAMMDD + homoclave.
var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)

// NormalizeRFC normaliza un RFC: mayúsculas, sin espacios ni diacríticos
// (salvo la Ñ, que es parte del alfabeto RFC).
func NormalizeRFC(rfc string) string {
	s := strings.ToUpper(strings.TrimSpace(rfc))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	// Proteger la Ñ antes de remover marcas diacríticas
	s = strings.ReplaceAll(s, "Ñ", "\x00")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.ReplaceAll(s, "\x00", "Ñ")
}

// ValidateRFC valida la estructura de un RFC (no consulta el padrón del SAT).
func ValidateRFC(rfc string) error {
	r := NormalizeRFC(rfc)
	if r == "" {
		return fmt.Errorf("RFC vacío")
	}
	if n := utf8.RuneCountInString(r); n != 12 && n != 13 {
		return fmt.Errorf("RFC %q: longitud inválida (12 para moral, 13 para física)", r)
	}
	if !rfcPattern.MatchString(r) {
		return fmt.Errorf("RFC %q: estructura inválida", r)
	}
	return nil
}

// EsRFCGenerico reporta si el RFC es uno de los genéricos del SAT.
func EsRFCGenerico(rfc string) bool {
	r := NormalizeRFC(rfc)
	return r == RFCGenericoNacional || r == RFCGenericoExtranjero
}

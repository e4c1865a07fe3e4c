package cfdi_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/cfdi"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// contextoDePrueba arma un comprobante PUE en MXN con una línea de 1000.00
// gravada con IVA 16%: SubTotal 1000.00, traslado 160.00, Total 1160.00.
func contextoDePrueba() *cfdi.ComprobanteContext {
	fecha := time.Date(2026, 3, 15, 12, 30, 45, 0, time.Local)
	return &cfdi.ComprobanteContext{
		Invoice: &entity.Invoice{
			ID: "inv-1", Serie: "A", Folio: "101",
			Fecha:      fecha,
			FormaPago:  "03", MetodoPago: "PUE", UsoCFDI: "G03",
			Moneda:   "MXN",
			SubTotal: dec("1000.00"), Total: dec("1160.00"),
			Status: entity.StatusBorrador,
		},
		Company: &entity.Company{
			RFC: "AAA010101AA1", RazonSocial: "EMISORA DE PRUEBA",
			RegimenFiscal: "601", CodigoPostal: "06000",
		},
		Customer: &entity.Customer{
			RFC: "XAXX010101000", RazonSocial: "PUBLICO EN GENERAL",
			DomicilioFiscal: "06000", RegimenFiscal: "616",
		},
		Conceptos: []*entity.Concepto{{
			ClaveProdServ: "01010101", ClaveUnidad: "H87", Unidad: "Pieza",
			Descripcion: "Producto de prueba",
			Cantidad:    dec("1"), ValorUnitario: dec("1000.00"), Importe: dec("1000.00"),
			ObjetoImp: "02",
			Impuestos: []entity.ConceptoImpuesto{{
				Tipo: entity.ImpuestoTraslado, Base: dec("1000.00"),
				Impuesto: "002", TipoFactor: "Tasa",
				TasaOCuota: dec("0.160000"), Importe: dec("160.00"),
			}},
		}},
	}
}

// rootDePrueba parsea los bytes y devuelve la raíz cfdi:Comprobante.
func rootDePrueba(t *testing.T, xmlBytes []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	root := doc.Root()
	require.NotNil(t, root)
	require.Equal(t, "Comprobante", root.Tag)
	return root
}

func attr(e *etree.Element, name string) string {
	if a := e.SelectAttr(name); a != nil {
		return a.Value
	}
	return ""
}

func TestBuild_ComprobanteIVA16(t *testing.T) {
	b := cfdi.NewXMLBuilderService()
	xmlBytes, err := b.Build(contextoDePrueba())
	require.NoError(t, err)

	root := rootDePrueba(t, xmlBytes)
	assert.Equal(t, "4.0", attr(root, "Version"))
	assert.Equal(t, "A", attr(root, "Serie"))
	assert.Equal(t, "101", attr(root, "Folio"))
	assert.Equal(t, "1000.00", attr(root, "SubTotal"))
	assert.Equal(t, "1160.00", attr(root, "Total"))
	assert.Equal(t, "MXN", attr(root, "Moneda"))
	assert.Equal(t, "I", attr(root, "TipoDeComprobante"))
	assert.Equal(t, "01", attr(root, "Exportacion"))
	// Moneda nacional: TipoCambio no se emite
	assert.Empty(t, attr(root, "TipoCambio"))
	// Descuento en cero se omite, nunca "0.00"
	assert.Empty(t, attr(root, "Descuento"))

	s := string(xmlBytes)
	assert.Contains(t, s, `xmlns:cfdi="http://www.sat.gob.mx/cfd/4"`)
	assert.Contains(t, s, `TotalImpuestosTrasladados="160.00"`)
	assert.Contains(t, s, `TasaOCuota="0.160000"`)
	assert.NotContains(t, s, "Sello=")
}

func TestBuild_Determinista(t *testing.T) {
	b := cfdi.NewXMLBuilderService()
	a, err := b.Build(contextoDePrueba())
	require.NoError(t, err)
	c, err := b.Build(contextoDePrueba())
	require.NoError(t, err)
	// Dos generaciones del mismo agregado producen bytes idénticos
	assert.Equal(t, a, c)
}

func TestBuild_MonedaExtranjeraLlevaTipoCambio(t *testing.T) {
	ctx := contextoDePrueba()
	ctx.Invoice.Moneda = "USD"
	ctx.Invoice.TipoCambio = dec("17.123456")

	xmlBytes, err := cfdi.NewXMLBuilderService().Build(ctx)
	require.NoError(t, err)

	root := rootDePrueba(t, xmlBytes)
	assert.Equal(t, "USD", attr(root, "Moneda"))
	assert.Equal(t, "17.123456", attr(root, "TipoCambio"))
}

func TestBuild_RechazaEstadoNoTimbrable(t *testing.T) {
	ctx := contextoDePrueba()
	ctx.Invoice.Status = entity.StatusTimbrada

	_, err := cfdi.NewXMLBuilderService().Build(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestBuild_CatalogoFaltante(t *testing.T) {
	ctx := contextoDePrueba()
	ctx.Invoice.FormaPago = "ZZ"

	_, err := cfdi.NewXMLBuilderService().Build(ctx)
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "formaPago", verr.Field)
}

func TestEmbedSello_OrdenDeAtributos(t *testing.T) {
	b := cfdi.NewXMLBuilderService()
	xmlBytes, err := b.Build(contextoDePrueba())
	require.NoError(t, err)

	sellado, err := b.EmbedSello(xmlBytes, "U0VMTE8=", "30001000000400002434", "Q0VSVA==")
	require.NoError(t, err)

	root := rootDePrueba(t, sellado)
	assert.Equal(t, "U0VMTE8=", attr(root, "Sello"))
	assert.Equal(t, "30001000000400002434", attr(root, "NoCertificado"))
	assert.Equal(t, "Q0VSVA==", attr(root, "Certificado"))

	// Sello va antes que NoCertificado en la secuencia del Anexo 20
	s := string(sellado)
	assert.Less(t, strings.Index(s, "Sello="), strings.Index(s, "NoCertificado="))

	// Segunda pasada con el sello definitivo reemplaza, no duplica
	final, err := b.EmbedSello(sellado, "RklOQUw=", "30001000000400002434", "Q0VSVA==")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(final), "Sello="))
	assert.Equal(t, "RklOQUw=", attr(rootDePrueba(t, final), "Sello"))
}

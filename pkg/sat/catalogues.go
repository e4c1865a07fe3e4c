// Package sat contiene catálogos y validaciones alineados al Anexo 20 del
// SAT para CFDI 4.0 (México). Solo los códigos de uso frecuente; el catálogo
// completo vive en la base de datos del colaborador externo.
package sat

// =============================================================================
// c_FormaPago (Anexo 20 - catálogo de formas de pago)
// =============================================================================

const (
	FormaPagoEfectivo      = "01" // Efectivo
	FormaPagoChequeNominal = "02" // Cheque nominativo
	FormaPagoTransferencia = "03" // Transferencia electrónica de fondos
	FormaPagoTarjetaCred   = "04" // Tarjeta de crédito
	FormaPagoTarjetaDeb    = "28" // Tarjeta de débito
	FormaPagoPorDefinir    = "99" // Por definir (obligatorio con PPD)
)

// ValidFormaPagoCodes formas de pago aceptadas por este emisor.
var ValidFormaPagoCodes = map[string]bool{
	FormaPagoEfectivo: true, FormaPagoChequeNominal: true,
	FormaPagoTransferencia: true, FormaPagoTarjetaCred: true,
	FormaPagoTarjetaDeb: true, FormaPagoPorDefinir: true,
}

// =============================================================================
// c_MetodoPago
// =============================================================================

const (
	MetodoPagoPUE = "PUE" // Pago en una sola exhibición
	MetodoPagoPPD = "PPD" // Pago en parcialidades o diferido
)

// =============================================================================
// c_UsoCFDI (códigos de uso frecuente)
// =============================================================================

const (
	UsoCFDIAdquisicion = "G01" // Adquisición de mercancías
	UsoCFDIGastos      = "G03" // Gastos en general
	UsoCFDISinEfectos  = "S01" // Sin efectos fiscales
	UsoCFDIPorDefinir  = "CP01" // Pagos
)

// ValidUsoCFDICodes usos CFDI aceptados.
var ValidUsoCFDICodes = map[string]bool{
	UsoCFDIAdquisicion: true, UsoCFDIGastos: true, UsoCFDISinEfectos: true,
}

// =============================================================================
// c_RegimenFiscal (códigos de uso frecuente)
// =============================================================================

const (
	RegimenGeneralLeyPM       = "601" // General de Ley Personas Morales
	RegimenPFActividadEmpres  = "612" // PF con actividades empresariales
	RegimenSinObligaciones    = "616" // Sin obligaciones fiscales
	RegimenSimplificadoConf   = "626" // Régimen Simplificado de Confianza
)

// =============================================================================
// c_Impuesto
// =============================================================================

const (
	ImpuestoISR  = "001" // ISR (solo retención)
	ImpuestoIVA  = "002" // IVA
	ImpuestoIEPS = "003" // IEPS
)

// =============================================================================
// c_TipoFactor y c_ObjetoImp
// =============================================================================

const (
	TipoFactorTasa   = "Tasa"
	TipoFactorCuota  = "Cuota"
	TipoFactorExento = "Exento"

	ObjetoImpNoObjeto      = "01" // No objeto de impuesto
	ObjetoImpSiObjeto      = "02" // Sí objeto de impuesto
	ObjetoImpSiNoDesglosado = "03" // Sí objeto, no obligado al desglose
)

// =============================================================================
// c_TipoDeComprobante, c_Exportacion, c_Moneda
// =============================================================================

const (
	ComprobanteIngreso  = "I"
	ComprobanteEgreso   = "E"
	ComprobanteTraslado = "T"
	ComprobantePago     = "P"

	ExportacionNoAplica = "01"

	MonedaMXN = "MXN"
	MonedaUSD = "USD"
)

// =============================================================================
// Motivos de cancelación (catálogo fijo de cuatro códigos)
// =============================================================================

const (
	MotivoConErroresConRelacion = "01" // Comprobante emitido con errores con relación
	MotivoConErroresSinRelacion = "02" // Comprobante emitido con errores sin relación
	MotivoNoSeLlevoACabo        = "03" // No se llevó a cabo la operación
	MotivoOperacionNominativa   = "04" // Operación nominativa relacionada en factura global
)

// ValidMotivosCancelacion motivos de cancelación válidos ante el SAT.
var ValidMotivosCancelacion = map[string]bool{
	MotivoConErroresConRelacion: true,
	MotivoConErroresSinRelacion: true,
	MotivoNoSeLlevoACabo:        true,
	MotivoOperacionNominativa:   true,
}

// MotivoRequiereSustitucion indica qué motivos exigen el UUID del comprobante
// que sustituye al cancelado (FolioSustitucion).
var MotivoRequiereSustitucion = map[string]bool{
	MotivoConErroresConRelacion: true,
}

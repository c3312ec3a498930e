package models

import (
	"strconv"
	"time"
)

// GeneralColumns is the column order of the reporting `general` table.
// GeneralRecord.Values must stay aligned with this list.
var GeneralColumns = []string{
	"NumeroDeReferencia", "id_referencias", "Pedimento", "Clave_pedimento",
	"Operacion", "a_despacho", "a_llegada", "C_Imp_Exp", "Facturar_a",
	"Agente_Aduanal", "Ejecutivo", "medio_trasporte", "facturada", "Cancelada", "APERTURA",
	"LLEGADA_MERCAN", "ENTREGA_CLASIFICA", "INICIO_CLASIFICA", "TERMINO_CLASIFICA",
	"INICIO_GLOSA", "TERMINO_GLOSA", "ENTREGA_GLOSA", "PAGO_PEDIMENTO",
	"DESPACHO_MERCAN", "ENTREGA_FAC", "FECHA_FAC", "ENTREGA_FAC_CLI",
	"ENTREGA_CAPTURA", "INICIO_CAPTURA", "TERMINO_CAPTURA", "PRIMER_RECONOCIMIENTO",
	"Total_Adv", "Total_DTA", "Total_IVA", "Total_Imp",
}

// GeneralKeyColumns identifies the upsert conflict key of `general`.
var GeneralKeyColumns = []string{"id_referencias"}

// EventDates carries the pivoted event-log timestamps, one field per
// tracked event kind, already shifted to the reporting timezone.
type EventDates struct {
	GoodsArrival         *time.Time // evento 6
	ClassifyHandoff      *time.Time // evento 18
	ClassifyStart        *time.Time // evento 19
	ClassifyEnd          *time.Time // evento 20
	GlossHandoff         *time.Time // evento 22
	CaptureHandoff       *time.Time // evento 26
	DutyPayment          *time.Time // evento 29
	GoodsDispatch        *time.Time // evento 32
	CaptureStart         *time.Time // evento 33
	FirstInspection      *time.Time // evento 36
	CaptureEnd           *time.Time // evento 42
	InvoiceHandoff       *time.Time // evento 47
	InvoiceDate          *time.Time // evento 48
	InvoiceClientHandoff *time.Time // evento 49
	GlossStart           *time.Time // evento 69
	GlossEnd             *time.Time // evento 70
}

// GeneralRecord is the denormalized one-row-per-reference projection
// written to `general`. All values are already normalized: timestamps
// shifted, money coerced, flags tri-stated, text repaired.
type GeneralRecord struct {
	RefID          int64
	RefNumber      *string
	Pedimento      *string
	Regime         *string
	Operation      int64
	OfficeDispatch *string
	OfficeArrival  *string
	Importer       *string
	BillTo         *string
	Agent          *string
	Executive      *string
	Transport      *string
	Invoiced       *int8
	Cancelled      *int8
	OpenedAt       *time.Time

	// OpenedAtSource is the raw source-side opening timestamp. The
	// checkpoint watermark lives in the source time domain, so it must
	// be computed from this value, never from the shifted OpenedAt.
	OpenedAtSource time.Time

	Events EventDates

	TotalADV *float64
	TotalDTA *float64
	TotalIVA *float64
	TotalTax *float64
}

func (r *GeneralRecord) Key() string {
	return strconv.FormatInt(r.RefID, 10)
}

// Values flattens the record in GeneralColumns order.
func (r *GeneralRecord) Values() []any {
	return []any{
		ptrVal(r.RefNumber), r.RefID, ptrVal(r.Pedimento), ptrVal(r.Regime),
		r.Operation, ptrVal(r.OfficeDispatch), ptrVal(r.OfficeArrival),
		ptrVal(r.Importer), ptrVal(r.BillTo), ptrVal(r.Agent), ptrVal(r.Executive),
		ptrVal(r.Transport), ptrVal(r.Invoiced), ptrVal(r.Cancelled), ptrVal(r.OpenedAt),
		ptrVal(r.Events.GoodsArrival), ptrVal(r.Events.ClassifyHandoff),
		ptrVal(r.Events.ClassifyStart), ptrVal(r.Events.ClassifyEnd),
		ptrVal(r.Events.GlossStart), ptrVal(r.Events.GlossEnd),
		ptrVal(r.Events.GlossHandoff), ptrVal(r.Events.DutyPayment),
		ptrVal(r.Events.GoodsDispatch), ptrVal(r.Events.InvoiceHandoff),
		ptrVal(r.Events.InvoiceDate), ptrVal(r.Events.InvoiceClientHandoff),
		ptrVal(r.Events.CaptureHandoff), ptrVal(r.Events.CaptureStart),
		ptrVal(r.Events.CaptureEnd), ptrVal(r.Events.FirstInspection),
		ptrVal(r.TotalADV), ptrVal(r.TotalDTA), ptrVal(r.TotalIVA), ptrVal(r.TotalTax),
	}
}

// ptrVal converts typed nil pointers into untyped nils so the driver
// binds them as SQL NULL.
func ptrVal[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

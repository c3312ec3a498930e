package models

import (
	"strconv"
	"time"
)

// InvoiceColumns is the column order of the reporting `facturas` table.
var InvoiceColumns = []string{
	"id_referencias", "IDFactura", "NumFac", "Fecha_c",
	"Incoterm", "Moneda", "Valor_ME", "Valor_USD",
}

// InvoiceKeyColumns identifies the composite upsert conflict key of `facturas`.
var InvoiceKeyColumns = []string{"id_referencias", "IDFactura"}

// InvoiceRecord is one row per (reference, invoice) in `facturas`.
type InvoiceRecord struct {
	RefID       int64
	InvoiceID   int64
	Number      *string
	Date        *time.Time
	Incoterm    *string
	Currency    *string
	AmountLocal *float64
	AmountUSD   *float64
}

// InvoiceKey builds the composite key used for existence classification.
func InvoiceKey(refID, invoiceID int64) string {
	return strconv.FormatInt(refID, 10) + ":" + strconv.FormatInt(invoiceID, 10)
}

func (r *InvoiceRecord) Key() string {
	return InvoiceKey(r.RefID, r.InvoiceID)
}

// Values flattens the record in InvoiceColumns order.
func (r *InvoiceRecord) Values() []any {
	return []any{
		r.RefID, r.InvoiceID, ptrVal(r.Number), ptrVal(r.Date),
		ptrVal(r.Incoterm), ptrVal(r.Currency),
		ptrVal(r.AmountLocal), ptrVal(r.AmountUSD),
	}
}

// Package transform sits between extraction and load: it drops degenerate
// rows, runs every boundary value through its normalizer, and shapes the
// result into target column order.
package transform

import (
	"time"

	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/models"
	"github.com/aduanapp/refsync/internal/normalize"
)

// CleanGeneral drops rows whose primary key is NULL. These are join
// degenerates from the source side; dropping is silent at this stage and
// only surfaced through the returned count.
func CleanGeneral(rows []extract.GeneralRow) ([]extract.GeneralRow, int) {
	kept := make([]extract.GeneralRow, 0, len(rows))
	for _, r := range rows {
		if !r.RefID.Valid {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(rows) - len(kept)
}

// CleanInvoices drops rows missing either half of the composite key.
func CleanInvoices(rows []extract.InvoiceRow) ([]extract.InvoiceRow, int) {
	kept := make([]extract.InvoiceRow, 0, len(rows))
	for _, r := range rows {
		if !r.RefID.Valid || !r.InvoiceID.Valid {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(rows) - len(kept)
}

// GeneralRecord normalizes one cleaned extraction row. Caller guarantees
// RefID is valid (CleanGeneral ran first).
func GeneralRecord(r extract.GeneralRow) *models.GeneralRecord {
	var operation int64
	if r.Operation.Valid {
		operation = r.Operation.Int64
	}

	var openedSource time.Time
	if r.OpenedAt.Valid {
		openedSource = r.OpenedAt.Time
	}

	return &models.GeneralRecord{
		RefID:          r.RefID.Int64,
		RefNumber:      normalize.CleanText(r.RefNumber),
		Pedimento:      normalize.CleanText(r.Pedimento),
		Regime:         normalize.CleanText(r.Regime),
		Operation:      operation,
		OfficeDispatch: normalize.CleanText(r.OfficeDispatch),
		OfficeArrival:  normalize.CleanText(r.OfficeArrival),
		Importer:       normalize.CleanText(r.Importer),
		BillTo:         normalize.CleanText(r.BillTo),
		Agent:          normalize.CleanText(r.Agent),
		Executive:      normalize.CleanText(r.Executive),
		Transport:      normalize.CleanText(r.Transport),
		Invoiced:       normalize.CoerceBool(r.Invoiced),
		Cancelled:      normalize.CoerceBool(r.Cancelled),
		OpenedAt:       normalize.ShiftNullTime(r.OpenedAt),
		OpenedAtSource: openedSource,
		Events: models.EventDates{
			GoodsArrival:         normalize.ShiftNullTime(r.GoodsArrival),
			ClassifyHandoff:      normalize.ShiftNullTime(r.ClassifyHandoff),
			ClassifyStart:        normalize.ShiftNullTime(r.ClassifyStart),
			ClassifyEnd:          normalize.ShiftNullTime(r.ClassifyEnd),
			GlossStart:           normalize.ShiftNullTime(r.GlossStart),
			GlossEnd:             normalize.ShiftNullTime(r.GlossEnd),
			GlossHandoff:         normalize.ShiftNullTime(r.GlossHandoff),
			DutyPayment:          normalize.ShiftNullTime(r.DutyPayment),
			GoodsDispatch:        normalize.ShiftNullTime(r.GoodsDispatch),
			InvoiceHandoff:       normalize.ShiftNullTime(r.InvoiceHandoff),
			InvoiceDate:          normalize.ShiftNullTime(r.InvoiceDate),
			InvoiceClientHandoff: normalize.ShiftNullTime(r.InvoiceClientHandoff),
			CaptureHandoff:       normalize.ShiftNullTime(r.CaptureHandoff),
			CaptureStart:         normalize.ShiftNullTime(r.CaptureStart),
			CaptureEnd:           normalize.ShiftNullTime(r.CaptureEnd),
			FirstInspection:      normalize.ShiftNullTime(r.FirstInspection),
		},
		TotalADV: normalize.CoerceMoney(r.TotalADV),
		TotalDTA: normalize.CoerceMoney(r.TotalDTA),
		TotalIVA: normalize.CoerceMoney(r.TotalIVA),
		TotalTax: normalize.CoerceMoney(r.TotalTax),
	}
}

// GeneralRecords cleans and normalizes a full extraction.
func GeneralRecords(rows []extract.GeneralRow) ([]*models.GeneralRecord, int) {
	clean, dropped := CleanGeneral(rows)
	out := make([]*models.GeneralRecord, 0, len(clean))
	for _, r := range clean {
		out = append(out, GeneralRecord(r))
	}
	return out, dropped
}

// InvoiceRecord normalizes one cleaned invoice row.
func InvoiceRecord(r extract.InvoiceRow) *models.InvoiceRecord {
	return &models.InvoiceRecord{
		RefID:       r.RefID.Int64,
		InvoiceID:   r.InvoiceID.Int64,
		Number:      normalize.CleanText(r.Number),
		Date:        normalize.ShiftNullTime(r.Date),
		Incoterm:    normalize.CleanText(r.Incoterm),
		Currency:    normalize.CleanText(r.Currency),
		AmountLocal: normalize.CoerceMoney(r.AmountLocal),
		AmountUSD:   normalize.CoerceMoney(r.AmountUSD),
	}
}

// InvoiceRecords cleans and normalizes a full invoice extraction.
func InvoiceRecords(rows []extract.InvoiceRow) ([]*models.InvoiceRecord, int) {
	clean, dropped := CleanInvoices(rows)
	out := make([]*models.InvoiceRecord, 0, len(clean))
	for _, r := range clean {
		out = append(out, InvoiceRecord(r))
	}
	return out, dropped
}

// MaxOpenedAt returns the highest source-side opening timestamp among the
// processed records. The second return is false when no record carried an
// opening timestamp, in which case the watermark must not move.
func MaxOpenedAt(records []*models.GeneralRecord) (time.Time, bool) {
	var maxT time.Time
	found := false
	for _, r := range records {
		if r.OpenedAtSource.IsZero() {
			continue
		}
		if !found || r.OpenedAtSource.After(maxT) {
			maxT = r.OpenedAtSource
			found = true
		}
	}
	return maxT, found
}

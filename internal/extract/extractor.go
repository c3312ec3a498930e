// Package extract issues the read-only queries against the legacy
// SQL Server and scans the results into raw row structs. No normalization
// happens here: values leave this package exactly as the driver returned
// them, and the transform layer owns every conversion.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// GeneralRow is one pivoted reference row as extracted, pre-normalization.
// Money and flag columns are scanned as `any` because the legacy MONEY and
// flag columns do not have a stable driver-side type.
type GeneralRow struct {
	RefNumber      sql.NullString
	RefID          sql.NullInt64
	Pedimento      sql.NullString
	Regime         sql.NullString
	Operation      sql.NullInt64
	OfficeDispatch sql.NullString
	OfficeArrival  sql.NullString
	Importer       sql.NullString
	BillTo         sql.NullString
	Agent          sql.NullString
	Executive      sql.NullString
	Transport      sql.NullString
	Invoiced       any
	Cancelled      any
	OpenedAt       sql.NullTime

	GoodsArrival         sql.NullTime
	ClassifyHandoff      sql.NullTime
	ClassifyStart        sql.NullTime
	ClassifyEnd          sql.NullTime
	GlossStart           sql.NullTime
	GlossEnd             sql.NullTime
	GlossHandoff         sql.NullTime
	DutyPayment          sql.NullTime
	GoodsDispatch        sql.NullTime
	InvoiceHandoff       sql.NullTime
	InvoiceDate          sql.NullTime
	InvoiceClientHandoff sql.NullTime
	CaptureHandoff       sql.NullTime
	CaptureStart         sql.NullTime
	CaptureEnd           sql.NullTime
	FirstInspection      sql.NullTime

	TotalADV any
	TotalDTA any
	TotalIVA any
	TotalTax any
}

// InvoiceRow is one invoice row as extracted, pre-normalization.
type InvoiceRow struct {
	RefID       sql.NullInt64
	InvoiceID   sql.NullInt64
	Number      sql.NullString
	Date        sql.NullTime
	Incoterm    sql.NullString
	Currency    sql.NullString
	AmountLocal any
	AmountUSD   any
}

// EventBackfillRow carries the re-pivoted event dates for one reference,
// used by the `eventos` backfill job.
type EventBackfillRow struct {
	RefID sql.NullInt64

	GoodsArrival         sql.NullTime
	ClassifyHandoff      sql.NullTime
	ClassifyStart        sql.NullTime
	ClassifyEnd          sql.NullTime
	GlossStart           sql.NullTime
	GlossEnd             sql.NullTime
	GlossHandoff         sql.NullTime
	DutyPayment          sql.NullTime
	GoodsDispatch        sql.NullTime
	InvoiceHandoff       sql.NullTime
	InvoiceDate          sql.NullTime
	InvoiceClientHandoff sql.NullTime
	CaptureHandoff       sql.NullTime
	CaptureStart         sql.NullTime
	CaptureEnd           sql.NullTime
	FirstInspection      sql.NullTime
}

// InvoicedFlagRow carries the raw invoiced flag for one reference.
type InvoicedFlagRow struct {
	RefID    sql.NullInt64
	Invoiced any
}

// CancelledFlagRow carries the raw cancellation flag for one reference.
type CancelledFlagRow struct {
	RefID     sql.NullInt64
	Cancelled any
}

// Extractor runs the source-side queries. All methods are read-only and
// any query error is fatal to the run: there is no partial-result handling
// at this layer.
type Extractor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

func NewExtractor(db *sql.DB, requestTimeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{db: db, timeout: requestTimeout, logger: logger}
}

// General extracts one pivoted row per active reference opened strictly
// after since.
func (e *Extractor) General(ctx context.Context, since time.Time) ([]GeneralRow, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(opCtx, queryGeneral, sql.Named("fApertura", since))
	if err != nil {
		return nil, fmt.Errorf("general extraction query failed: %w", err)
	}
	defer rows.Close()

	var out []GeneralRow
	for rows.Next() {
		var r GeneralRow
		err := rows.Scan(
			&r.RefNumber, &r.RefID, &r.Pedimento, &r.Regime, &r.Operation,
			&r.OfficeDispatch, &r.OfficeArrival, &r.Importer, &r.BillTo,
			&r.Agent, &r.Executive, &r.Transport, &r.Invoiced, &r.Cancelled, &r.OpenedAt,
			&r.GoodsArrival, &r.ClassifyHandoff, &r.ClassifyStart, &r.ClassifyEnd,
			&r.GlossStart, &r.GlossEnd, &r.GlossHandoff, &r.DutyPayment,
			&r.GoodsDispatch, &r.InvoiceHandoff, &r.InvoiceDate, &r.InvoiceClientHandoff,
			&r.CaptureHandoff, &r.CaptureStart, &r.CaptureEnd, &r.FirstInspection,
			&r.TotalADV, &r.TotalDTA, &r.TotalIVA, &r.TotalTax,
		)
		if err != nil {
			return nil, fmt.Errorf("general row scan failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("general extraction iteration failed: %w", err)
	}

	e.logger.Debug("General extraction complete", "rows", len(out), "since", since)
	return out, nil
}

// Invoices extracts the invoices of references opened strictly after since.
func (e *Extractor) Invoices(ctx context.Context, since time.Time) ([]InvoiceRow, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(opCtx, queryInvoices, sql.Named("fApertura", since))
	if err != nil {
		return nil, fmt.Errorf("invoice extraction query failed: %w", err)
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var r InvoiceRow
		err := rows.Scan(
			&r.RefID, &r.InvoiceID, &r.Number, &r.Date,
			&r.Incoterm, &r.Currency, &r.AmountLocal, &r.AmountUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("invoice row scan failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invoice extraction iteration failed: %w", err)
	}

	e.logger.Debug("Invoice extraction complete", "rows", len(out), "since", since)
	return out, nil
}

// BackfillEvents re-pivots the event columns for every active reference.
func (e *Extractor) BackfillEvents(ctx context.Context) ([]EventBackfillRow, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(opCtx, queryBackfillEvents)
	if err != nil {
		return nil, fmt.Errorf("event backfill query failed: %w", err)
	}
	defer rows.Close()

	var out []EventBackfillRow
	for rows.Next() {
		var r EventBackfillRow
		err := rows.Scan(
			&r.RefID,
			&r.GoodsArrival, &r.ClassifyHandoff, &r.ClassifyStart, &r.ClassifyEnd,
			&r.GlossStart, &r.GlossEnd, &r.GlossHandoff, &r.DutyPayment,
			&r.GoodsDispatch, &r.InvoiceHandoff, &r.InvoiceDate, &r.InvoiceClientHandoff,
			&r.CaptureHandoff, &r.CaptureStart, &r.CaptureEnd, &r.FirstInspection,
		)
		if err != nil {
			return nil, fmt.Errorf("event backfill scan failed: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BackfillInvoiced pulls the raw invoiced flag for every active reference.
func (e *Extractor) BackfillInvoiced(ctx context.Context) ([]InvoicedFlagRow, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(opCtx, queryBackfillInvoiced)
	if err != nil {
		return nil, fmt.Errorf("invoiced backfill query failed: %w", err)
	}
	defer rows.Close()

	var out []InvoicedFlagRow
	for rows.Next() {
		var r InvoicedFlagRow
		if err := rows.Scan(&r.RefID, &r.Invoiced); err != nil {
			return nil, fmt.Errorf("invoiced backfill scan failed: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BackfillCancelled pulls the cancellation flag for every reference,
// cancelled ones included.
func (e *Extractor) BackfillCancelled(ctx context.Context) ([]CancelledFlagRow, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(opCtx, queryBackfillCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancelled backfill query failed: %w", err)
	}
	defer rows.Close()

	var out []CancelledFlagRow
	for rows.Next() {
		var r CancelledFlagRow
		if err := rows.Scan(&r.RefID, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("cancelled backfill scan failed: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aduanapp/refsync/internal/db"
	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/normalize"
	"github.com/aduanapp/refsync/internal/upsert"
)

// dateColumns lists every timestamp column of `general`, used by the
// sentinel-date cleanup job.
var dateColumns = []string{
	"APERTURA", "LLEGADA_MERCAN", "ENTREGA_CLASIFICA", "INICIO_CLASIFICA",
	"TERMINO_CLASIFICA", "INICIO_GLOSA", "TERMINO_GLOSA", "ENTREGA_GLOSA",
	"PAGO_PEDIMENTO", "DESPACHO_MERCAN", "ENTREGA_FAC", "FECHA_FAC",
	"ENTREGA_FAC_CLI", "ENTREGA_CAPTURA", "INICIO_CAPTURA", "TERMINO_CAPTURA",
	"PRIMER_RECONOCIMIENTO",
}

// Backfiller runs the ad-hoc historical correction jobs. All of them are
// instances of the same template (extract, normalize, per-row update with
// individual error capture), parameterized by source query, target column
// mapping and normalizer set.
type Backfiller struct {
	source    *extract.Extractor
	target    *db.TargetRepository
	engine    *upsert.Engine
	chunkSize int
	logger    *slog.Logger
}

func NewBackfiller(source *extract.Extractor, target *db.TargetRepository, engine *upsert.Engine, chunkSize int, logger *slog.Logger) *Backfiller {
	return &Backfiller{
		source:    source,
		target:    target,
		engine:    engine,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Jobs lists the registered backfill job names.
func (b *Backfiller) Jobs() []string {
	return []string{"eventos", "facturada", "canceladas", "fechas1899"}
}

// Run executes one named job and returns its per-row accounting.
func (b *Backfiller) Run(ctx context.Context, job string) (upsert.BackfillResult, error) {
	switch job {
	case "eventos":
		return b.backfillEvents(ctx)
	case "facturada":
		return b.backfillInvoiced(ctx)
	case "canceladas":
		return b.backfillCancelled(ctx)
	case "fechas1899":
		return b.clearSentinelDates(ctx)
	default:
		return upsert.BackfillResult{}, fmt.Errorf("unknown backfill job %q (known: %v)", job, b.Jobs())
	}
}

// backfillEvents re-pivots the event timestamps for every active reference
// and repairs the rows already present in `general`. References missing
// from the target are left alone: creating rows is the sync run's job.
func (b *Backfiller) backfillEvents(ctx context.Context) (upsert.BackfillResult, error) {
	rows, err := b.source.BackfillEvents(ctx)
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	existing, err := b.target.GeneralKeys(ctx, b.target.DB())
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	b.logger.Info("Event backfill scope computed", "extracted", len(rows), "target_rows", len(existing))

	updates := make([]upsert.RowUpdate, 0, len(rows))
	for _, r := range rows {
		if !r.RefID.Valid {
			continue
		}
		if _, ok := existing[strconv.FormatInt(r.RefID.Int64, 10)]; !ok {
			continue
		}

		sets := eventSets(r)
		updates = append(updates, upsert.RowUpdate{Key: r.RefID.Int64, Sets: sets})
	}

	return b.engine.Backfill(ctx, b.target.DB(), "general", "id_referencias", updates, b.chunkSize)
}

// eventSets builds the dynamic column list for one reference: only events
// that actually occurred, each shifted through the timezone normalizer.
func eventSets(r extract.EventBackfillRow) []upsert.ColumnValue {
	pairs := []struct {
		column string
		value  *time.Time
	}{
		{"LLEGADA_MERCAN", normalize.ShiftNullTime(r.GoodsArrival)},
		{"ENTREGA_CLASIFICA", normalize.ShiftNullTime(r.ClassifyHandoff)},
		{"INICIO_CLASIFICA", normalize.ShiftNullTime(r.ClassifyStart)},
		{"TERMINO_CLASIFICA", normalize.ShiftNullTime(r.ClassifyEnd)},
		{"INICIO_GLOSA", normalize.ShiftNullTime(r.GlossStart)},
		{"TERMINO_GLOSA", normalize.ShiftNullTime(r.GlossEnd)},
		{"ENTREGA_GLOSA", normalize.ShiftNullTime(r.GlossHandoff)},
		{"PAGO_PEDIMENTO", normalize.ShiftNullTime(r.DutyPayment)},
		{"DESPACHO_MERCAN", normalize.ShiftNullTime(r.GoodsDispatch)},
		{"ENTREGA_FAC", normalize.ShiftNullTime(r.InvoiceHandoff)},
		{"FECHA_FAC", normalize.ShiftNullTime(r.InvoiceDate)},
		{"ENTREGA_FAC_CLI", normalize.ShiftNullTime(r.InvoiceClientHandoff)},
		{"ENTREGA_CAPTURA", normalize.ShiftNullTime(r.CaptureHandoff)},
		{"INICIO_CAPTURA", normalize.ShiftNullTime(r.CaptureStart)},
		{"TERMINO_CAPTURA", normalize.ShiftNullTime(r.CaptureEnd)},
		{"PRIMER_RECONOCIMIENTO", normalize.ShiftNullTime(r.FirstInspection)},
	}

	var sets []upsert.ColumnValue
	for _, p := range pairs {
		if p.value == nil {
			continue
		}
		sets = append(sets, upsert.ColumnValue{Column: p.column, Value: *p.value})
	}
	return sets
}

// backfillInvoiced repairs the tri-state invoiced flag on every reference
// present in the target. Unlike the event job, NULL is a legitimate value
// to write here, so no row is skipped for lack of data.
func (b *Backfiller) backfillInvoiced(ctx context.Context) (upsert.BackfillResult, error) {
	rows, err := b.source.BackfillInvoiced(ctx)
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	existing, err := b.target.GeneralKeys(ctx, b.target.DB())
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	updates := make([]upsert.RowUpdate, 0, len(rows))
	for _, r := range rows {
		if !r.RefID.Valid {
			continue
		}
		if _, ok := existing[strconv.FormatInt(r.RefID.Int64, 10)]; !ok {
			continue
		}

		var value any
		if v := normalize.CoerceBool(r.Invoiced); v != nil {
			value = *v
		}
		updates = append(updates, upsert.RowUpdate{
			Key:  r.RefID.Int64,
			Sets: []upsert.ColumnValue{{Column: "facturada", Value: value}},
		})
	}

	return b.engine.Backfill(ctx, b.target.DB(), "general", "id_referencias", updates, b.chunkSize)
}

// backfillCancelled propagates the source cancellation flag to every
// reference present in the target. The sync run only extracts active
// references, so a reference cancelled after its last sync stays frozen in
// `general` until this job marks it.
func (b *Backfiller) backfillCancelled(ctx context.Context) (upsert.BackfillResult, error) {
	rows, err := b.source.BackfillCancelled(ctx)
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	existing, err := b.target.GeneralKeys(ctx, b.target.DB())
	if err != nil {
		return upsert.BackfillResult{}, err
	}

	updates := make([]upsert.RowUpdate, 0, len(rows))
	for _, r := range rows {
		if !r.RefID.Valid {
			continue
		}
		if _, ok := existing[strconv.FormatInt(r.RefID.Int64, 10)]; !ok {
			continue
		}

		var value any
		if v := normalize.CoerceBool(r.Cancelled); v != nil {
			value = *v
		}
		updates = append(updates, upsert.RowUpdate{
			Key:  r.RefID.Int64,
			Sets: []upsert.ColumnValue{{Column: "Cancelada", Value: value}},
		})
	}

	return b.engine.Backfill(ctx, b.target.DB(), "general", "id_referencias", updates, b.chunkSize)
}

// clearSentinelDates nulls out legacy 1899 placeholder dates that earlier
// loader versions wrote through verbatim. Target-only, one statement per
// column.
func (b *Backfiller) clearSentinelDates(ctx context.Context) (upsert.BackfillResult, error) {
	start := time.Now()
	var res upsert.BackfillResult

	for _, col := range dateColumns {
		query := fmt.Sprintf(
			"UPDATE general SET %s = NULL WHERE %s IS NOT NULL AND YEAR(%s) <= %d",
			col, col, col, normalize.SentinelYear,
		)
		sqlRes, err := b.target.DB().ExecContext(ctx, query)
		if err != nil {
			res.Errors = append(res.Errors, upsert.RowError{Key: col, Query: query, Err: err.Error()})
			continue
		}

		affected, _ := sqlRes.RowsAffected()
		if affected > 0 {
			b.logger.Info("Sentinel dates cleared", "column", col, "rows", affected)
			res.Updated += int(affected)
		} else {
			res.Unchanged++
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// Package service coordinates the sync pipeline: checkpoint read,
// extraction, transformation, transactional batch writes, checkpoint
// advance, and run-level accounting.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aduanapp/refsync/internal/db"
	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/models"
	"github.com/aduanapp/refsync/internal/transform"
	"github.com/aduanapp/refsync/internal/upsert"
	"github.com/aduanapp/refsync/pkg/metrics"
)

// CheckpointName identifies the single synchronization stream this job owns.
const CheckpointName = "apertura_activos"

// SourceExtractor is the read-only view of the legacy database.
type SourceExtractor interface {
	General(ctx context.Context, since time.Time) ([]extract.GeneralRow, error)
	Invoices(ctx context.Context, since time.Time) ([]extract.InvoiceRow, error)
}

// TargetStore is the reporting-database contract the orchestrator needs.
type TargetStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Checkpoint(ctx context.Context, name string) (time.Time, error)
	AdvanceCheckpoint(ctx context.Context, tx *sql.Tx, name string, dt time.Time) error
	GeneralKeys(ctx context.Context, q db.Querier) (map[string]struct{}, error)
	InvoiceKeys(ctx context.Context, q db.Querier) (map[string]struct{}, error)
	FetchGeneralRow(ctx context.Context, refID int64) (map[string]any, error)
}

// TableSummary is the per-table accounting of one run.
type TableSummary struct {
	Selected int
	Dropped  int
	Prepared int
	upsert.Result
}

// Summary is the run-level result logged after a successful commit.
type Summary struct {
	RunID     string
	Since     time.Time
	Watermark time.Time
	Advanced  bool
	General   TableSummary
	Invoices  TableSummary
	Duration  time.Duration
}

// Syncer drives one incremental synchronization run end to end. A single
// target-side transaction wraps both upserts and the checkpoint advance:
// either everything lands or nothing does.
type Syncer struct {
	source       SourceExtractor
	target       TargetStore
	engine       *upsert.Engine
	lookbackDays int
	chunkSize    int
	debugRefID   int64
	logger       *slog.Logger
}

func NewSyncer(source SourceExtractor, target TargetStore, engine *upsert.Engine, lookbackDays, chunkSize int, debugRefID int64, logger *slog.Logger) *Syncer {
	return &Syncer{
		source:       source,
		target:       target,
		engine:       engine,
		lookbackDays: lookbackDays,
		chunkSize:    chunkSize,
		debugRefID:   debugRefID,
		logger:       logger,
	}
}

// Run executes one full sync cycle. Any error after the transaction opens
// triggers a rollback; rollback failures are logged, never escalated.
func (s *Syncer) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	runID := uuid.NewString()
	l := s.logger.With("run_id", runID)

	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
		} else {
			metrics.RunsTotal.WithLabelValues("success").Inc()
		}
	}()

	// The lookback window re-scans a trailing overlap on every run;
	// idempotent upserts make the reprocessing safe
	checkpoint, err := s.target.Checkpoint(ctx, CheckpointName)
	if err != nil {
		return nil, fmt.Errorf("checkpoint read failed: %w", err)
	}
	since := checkpoint.AddDate(0, 0, -s.lookbackDays)

	l.Info("Sync window computed", "checkpoint", checkpoint, "since", since, "lookback_days", s.lookbackDays)

	genRows, err := s.source.General(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("general extraction failed: %w", err)
	}
	invRows, err := s.source.Invoices(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("invoice extraction failed: %w", err)
	}

	genRecords, genDropped := transform.GeneralRecords(genRows)
	invRecords, invDropped := transform.InvoiceRecords(invRows)
	if genDropped > 0 {
		metrics.RowsDropped.WithLabelValues("general").Add(float64(genDropped))
	}
	if invDropped > 0 {
		metrics.RowsDropped.WithLabelValues("facturas").Add(float64(invDropped))
	}

	if s.debugRefID > 0 {
		s.traceReference(ctx, l, genRecords)
	}

	tx, err := s.target.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open target transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			l.Error("Rollback failed", "error", rbErr)
		}
	}()

	genKeys, err := s.target.GeneralKeys(ctx, tx)
	if err != nil {
		return nil, err
	}
	invKeys, err := s.target.InvoiceKeys(ctx, tx)
	if err != nil {
		return nil, err
	}

	genUpdates, genInserts := transform.Classify(asRows(genRecords), genKeys)
	invUpdates, invInserts := transform.Classify(asRows(invRecords), invKeys)
	l.Info("Write plan",
		"general_updates", len(genUpdates), "general_inserts", len(genInserts),
		"facturas_updates", len(invUpdates), "facturas_inserts", len(invInserts),
	)

	genStmt := upsert.Statement{Table: "general", Columns: models.GeneralColumns, KeyColumns: models.GeneralKeyColumns}
	genResult, err := s.engine.Upsert(ctx, tx, genStmt, asRows(genRecords), genKeys, s.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("general upsert failed: %w", err)
	}

	invStmt := upsert.Statement{Table: "facturas", Columns: models.InvoiceColumns, KeyColumns: models.InvoiceKeyColumns}
	invResult, err := s.engine.Upsert(ctx, tx, invStmt, asRows(invRecords), invKeys, s.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("invoice upsert failed: %w", err)
	}

	// The watermark is the max source-side opening timestamp among the
	// processed general rows. It is computed from the general extraction
	// only; an invoice landing on a reference older than
	// watermark-lookback would be missed. Known behavior, kept on purpose
	// and surfaced in the summary log until there is a product decision.
	watermark, advanced := transform.MaxOpenedAt(genRecords)
	if advanced {
		if err := s.target.AdvanceCheckpoint(ctx, tx, CheckpointName, watermark); err != nil {
			return nil, fmt.Errorf("checkpoint advance failed: %w", err)
		}
	}

	// The commit is the single atomicity boundary of the run
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	committed = true

	if advanced {
		metrics.Watermark.Set(float64(watermark.Unix()))
	}

	summary = &Summary{
		RunID:     runID,
		Since:     since,
		Watermark: watermark,
		Advanced:  advanced,
		General: TableSummary{
			Selected: len(genRows),
			Dropped:  genDropped,
			Prepared: len(genRecords),
			Result:   genResult,
		},
		Invoices: TableSummary{
			Selected: len(invRows),
			Dropped:  invDropped,
			Prepared: len(invRecords),
			Result:   invResult,
		},
		Duration: time.Since(start),
	}

	s.logSummary(l, summary)
	return summary, nil
}

func (s *Syncer) logSummary(l *slog.Logger, sum *Summary) {
	watermark := "N/A"
	if sum.Advanced {
		watermark = sum.Watermark.Format(time.RFC3339)
	}

	l.Info("Sync run committed",
		"general_selected", sum.General.Selected,
		"general_dropped", sum.General.Dropped,
		"general_prepared", sum.General.Prepared,
		"general_inserted", sum.General.Inserted,
		"general_updated_attempted", sum.General.Duplicates,
		"general_updated_changed", sum.General.Changed,
		"general_warnings", sum.General.Warnings,
		"facturas_selected", sum.Invoices.Selected,
		"facturas_dropped", sum.Invoices.Dropped,
		"facturas_prepared", sum.Invoices.Prepared,
		"facturas_inserted", sum.Invoices.Inserted,
		"facturas_updated_attempted", sum.Invoices.Duplicates,
		"facturas_updated_changed", sum.Invoices.Changed,
		"facturas_warnings", sum.Invoices.Warnings,
		"watermark", watermark,
		"since", sum.Since.Format(time.RFC3339),
		"duration_ms", sum.Duration.Milliseconds(),
	)

	for _, cw := range sum.General.ChunkWarnings {
		for _, w := range cw.Warnings {
			l.Warn("Engine warning on general", "chunk", cw.ChunkIndex, "level", w.Level, "code", w.Code, "message", w.Message)
		}
	}
	for _, cw := range sum.Invoices.ChunkWarnings {
		for _, w := range cw.Warnings {
			l.Warn("Engine warning on facturas", "chunk", cw.ChunkIndex, "level", w.Level, "code", w.Code, "message", w.Message)
		}
	}
}

// traceReference emits a field-by-field comparison between the freshly
// transformed values and whatever the target currently holds for one
// reference. Diagnostic aid for timezone/coercion disputes with the
// operations team; enabled via DEBUG_REF_ID.
func (s *Syncer) traceReference(ctx context.Context, l *slog.Logger, records []*models.GeneralRecord) {
	var match *models.GeneralRecord
	for _, r := range records {
		if r.RefID == s.debugRefID {
			match = r
			break
		}
	}
	if match == nil {
		l.Debug("Debug reference not in this extraction window", "ref_id", s.debugRefID)
		return
	}

	current, err := s.target.FetchGeneralRow(ctx, s.debugRefID)
	if err != nil {
		l.Warn("Debug trace: target readback failed", "ref_id", s.debugRefID, "error", err)
		return
	}

	values := match.Values()
	for i, col := range models.GeneralColumns {
		l.Info("Debug trace field",
			"ref_id", s.debugRefID,
			"column", col,
			"incoming", values[i],
			"target", current[col],
		)
	}
}

func asRows[T upsert.Row](records []T) []upsert.Row {
	rows := make([]upsert.Row, len(records))
	for i, r := range records {
		rows[i] = r
	}
	return rows
}

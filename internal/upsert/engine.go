// Package upsert implements the chunked write path against the reporting
// database: multi-row INSERT ... ON DUPLICATE KEY UPDATE statements with
// per-chunk accounting and warning capture, plus the per-row backfill
// variant used by the correction jobs.
package upsert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/aduanapp/refsync/pkg/metrics"
)

// Row is the unit the engine writes: a stable classification key plus the
// bound values in statement column order.
type Row interface {
	Key() string
	Values() []any
}

// EngineWarning is one row of SHOW WARNINGS.
type EngineWarning struct {
	Level   string
	Code    int
	Message string
}

// ChunkWarnings attaches engine warnings to the chunk that produced them.
type ChunkWarnings struct {
	ChunkIndex int
	Warnings   []EngineWarning
}

// Result accumulates upsert accounting across chunks.
//
// MySQL's affected-rows counter conflates outcomes (1 per insert, 2 per
// changed update, 0 per identical update), so the engine combines it with
// the pre-loaded existing-key set to split the three cases apart:
//
//	Inserted   = rows whose key did not exist
//	Duplicates = rows whose key existed (changed or not)
//	Changed    = duplicates that actually modified at least one column
type Result struct {
	Records    int
	Inserted   int
	Duplicates int
	Changed    int
	Warnings   int

	ChunkWarnings []ChunkWarnings
}

func (r *Result) add(other Result) {
	r.Records += other.Records
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.Changed += other.Changed
	r.Warnings += other.Warnings
	r.ChunkWarnings = append(r.ChunkWarnings, other.ChunkWarnings...)
}

const warningFetchLimit = 50

// Engine executes chunked upserts inside a caller-owned transaction.
// Chunks run strictly sequentially so per-chunk feedback stays attributable
// to a deterministic order.
type Engine struct {
	logger          *slog.Logger
	captureWarnings bool
}

func NewEngine(logger *slog.Logger, captureWarnings bool) *Engine {
	return &Engine{logger: logger, captureWarnings: captureWarnings}
}

// Upsert writes rows to stmt.Table in chunks of at most chunkSize. The
// existing set must hold the keys present in the table at transaction
// start (nil counts as an empty table); the engine extends it as it goes
// so repeated keys within one run
// account as updates. A chunk statement error aborts immediately; the
// caller's transaction discipline decides the blast radius (it rolls back
// the whole run).
func (e *Engine) Upsert(ctx context.Context, tx *sql.Tx, stmt Statement, rows []Row, existing map[string]struct{}, chunkSize int) (Result, error) {
	var totals Result
	if len(rows) == 0 {
		return totals, nil
	}
	if chunkSize <= 0 {
		return totals, fmt.Errorf("invalid chunk size %d for table %s", chunkSize, stmt.Table)
	}
	if existing == nil {
		existing = make(map[string]struct{})
	}

	for i, chunk := range lo.Chunk(rows, chunkSize) {
		res, err := e.upsertChunk(ctx, tx, stmt, chunk, existing, i)
		if err != nil {
			return totals, fmt.Errorf("chunk %d on table %s failed: %w", i, stmt.Table, err)
		}
		totals.add(res)
	}

	return totals, nil
}

func (e *Engine) upsertChunk(ctx context.Context, tx *sql.Tx, stmt Statement, chunk []Row, existing map[string]struct{}, chunkIndex int) (Result, error) {
	start := time.Now()

	query, err := stmt.Build(len(chunk))
	if err != nil {
		return Result{}, err
	}

	preexisting := 0
	args := make([]any, 0, len(chunk)*len(stmt.Columns))
	for _, row := range chunk {
		if _, ok := existing[row.Key()]; ok {
			preexisting++
		}
		args = append(args, row.Values()...)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("rows-affected unavailable: %w", err)
	}

	inserted := len(chunk) - preexisting

	// ON DUPLICATE KEY UPDATE: affected = inserted*1 + changed*2 + noop*0
	changed := int(affected) - inserted
	if changed < 0 {
		e.logger.Warn("Chunk accounting anomaly: affected below insert count",
			"table", stmt.Table, "chunk", chunkIndex, "affected", affected, "inserted", inserted)
		changed = 0
	} else if changed%2 != 0 {
		e.logger.Warn("Chunk accounting anomaly: odd update delta, concurrent writer?",
			"table", stmt.Table, "chunk", chunkIndex, "affected", affected, "inserted", inserted)
	}
	changed /= 2
	if changed > preexisting {
		changed = preexisting
	}

	for _, row := range chunk {
		existing[row.Key()] = struct{}{}
	}

	result := Result{
		Records:    len(chunk),
		Inserted:   inserted,
		Duplicates: preexisting,
		Changed:    changed,
	}

	warnCount, warnings, err := e.fetchWarnings(ctx, tx)
	if err != nil {
		// Warning capture is best-effort diagnostics, never a failure
		e.logger.Warn("Failed to fetch engine warnings", "table", stmt.Table, "chunk", chunkIndex, "error", err)
	} else if warnCount > 0 {
		result.Warnings = warnCount
		if len(warnings) > 0 {
			result.ChunkWarnings = []ChunkWarnings{{ChunkIndex: chunkIndex, Warnings: warnings}}
		}
		metrics.UpsertWarnings.WithLabelValues(stmt.Table).Add(float64(warnCount))
	}

	metrics.ChunkDuration.WithLabelValues(stmt.Table).Observe(time.Since(start).Seconds())
	metrics.RowsUpserted.WithLabelValues(stmt.Table, "inserted").Add(float64(inserted))
	metrics.RowsUpserted.WithLabelValues(stmt.Table, "changed").Add(float64(changed))
	metrics.RowsUpserted.WithLabelValues(stmt.Table, "unchanged").Add(float64(preexisting - changed))

	e.logger.Debug("Chunk applied",
		"table", stmt.Table,
		"chunk", chunkIndex,
		"records", len(chunk),
		"inserted", inserted,
		"changed", changed,
		"warnings", result.Warnings,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// fetchWarnings reads the session warning count of the previous statement
// and, when capture is on, the warning detail. Runs on the transaction
// connection: warnings are session-scoped and evaporate on the next
// statement of that session.
func (e *Engine) fetchWarnings(ctx context.Context, tx *sql.Tx) (int, []EngineWarning, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT @@SESSION.warning_count").Scan(&count); err != nil {
		return 0, nil, err
	}
	if count == 0 || !e.captureWarnings {
		return count, nil, nil
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SHOW WARNINGS LIMIT %d", warningFetchLimit))
	if err != nil {
		return count, nil, err
	}
	defer rows.Close()

	var out []EngineWarning
	for rows.Next() {
		var w EngineWarning
		if err := rows.Scan(&w.Level, &w.Code, &w.Message); err != nil {
			return count, out, err
		}
		out = append(out, w)
	}
	return count, out, rows.Err()
}

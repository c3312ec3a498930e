package upsert

import (
	"context"
	"database/sql"
	"time"

	"github.com/samber/lo"
)

// RowUpdate is one reference to repair: the key value and the dynamic
// (column, value) list to set. Rows with an empty set list are skipped.
type RowUpdate struct {
	Key  any
	Sets []ColumnValue
}

// RowError captures everything needed to replay one failed update by hand.
type RowError struct {
	Key    any
	Query  string
	Params []any
	Err    string
}

// BackfillResult accumulates per-row accounting for a backfill pass.
type BackfillResult struct {
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []RowError
	Elapsed   time.Duration
}

// Backfill executes one parameterized UPDATE per row, outside any
// transaction. This trades throughput for per-record error isolation: a
// single bad row is recorded and the batch continues, nothing already
// written is rolled back. The caller flags the run (non-zero exit) when
// Errors is non-empty. Chunking here only paces progress logging.
func (e *Engine) Backfill(ctx context.Context, db *sql.DB, table, keyColumn string, updates []RowUpdate, chunkSize int) (BackfillResult, error) {
	start := time.Now()
	var res BackfillResult

	if chunkSize <= 0 {
		chunkSize = 100
	}

	chunks := lo.Chunk(updates, chunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}

		for _, u := range chunk {
			if len(u.Sets) == 0 {
				res.Skipped++
				continue
			}

			query, args, err := BuildRowUpdate(table, keyColumn, u.Key, u.Sets)
			if err != nil {
				res.Errors = append(res.Errors, RowError{Key: u.Key, Err: err.Error()})
				continue
			}

			sqlRes, err := db.ExecContext(ctx, query, args...)
			if err != nil {
				res.Errors = append(res.Errors, RowError{Key: u.Key, Query: query, Params: args, Err: err.Error()})
				continue
			}

			if affected, _ := sqlRes.RowsAffected(); affected > 0 {
				res.Updated++
			} else {
				res.Unchanged++
			}
		}

		e.logger.Info("Backfill batch complete",
			"table", table,
			"batch", i+1,
			"batches", len(chunks),
			"updated", res.Updated,
			"unchanged", res.Unchanged,
			"errors", len(res.Errors),
			"elapsed_s", int(time.Since(start).Seconds()),
		)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

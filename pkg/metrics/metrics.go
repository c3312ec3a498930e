package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks sync executions by final status (success/error/skipped)
	// "skipped" means the single-flight guard refused an overlapping trigger
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_runs_total",
		Help: "Total number of sync runs by final status",
	}, []string{"status"})

	// RunDuration measures the full checkpoint-to-commit cycle
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "etl_run_duration_seconds",
		Help:    "Duration of a complete sync run in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// RowsUpserted tracks write outcomes per target table
	// outcome: inserted, unchanged, changed
	RowsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_upserted_total",
		Help: "Rows written to the reporting database by table and outcome",
	}, []string{"table", "outcome"})

	// RowsDropped counts rows discarded by the cleaner for NULL primary keys
	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_dropped_total",
		Help: "Extracted rows dropped before load due to NULL key fields",
	}, []string{"table"})

	// ChunkDuration measures individual multi-row upsert statements
	ChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_chunk_duration_seconds",
		Help:    "Duration of a single chunked upsert statement",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
	}, []string{"table"})

	// UpsertWarnings counts MySQL engine warnings surfaced per chunk
	// (truncation, coercion). Growth here means schema drift, not failures
	UpsertWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_upsert_warnings_total",
		Help: "MySQL warnings reported during chunked upserts",
	}, []string{"table"})

	// Watermark exposes the checkpoint after the last successful run as a
	// unix timestamp. Lag against now() is the primary freshness indicator
	Watermark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "etl_watermark_timestamp_seconds",
		Help: "Opening-timestamp watermark after the last committed run",
	})
)

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aduanapp/refsync/internal/config"
	"github.com/aduanapp/refsync/internal/db"
	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/service"
	"github.com/aduanapp/refsync/internal/upsert"
	"github.com/aduanapp/refsync/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	job := os.Getenv("BACKFILL_JOB")
	if len(os.Args) > 1 {
		job = os.Args[1]
	}
	if job == "" {
		logger.Error("FATAL: no backfill job named (BACKFILL_JOB env or first argument)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := db.NewSourceRepository(cfg.Source, logger)
	if err != nil {
		logger.Error("FATAL: failed to connect to SQL Server", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	target, err := db.NewTargetRepository(cfg.Target, logger)
	if err != nil {
		logger.Error("FATAL: failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer target.Close()

	extractor := extract.NewExtractor(source.DB(), cfg.Source.RequestTimeout, logger)
	engine := upsert.NewEngine(logger, true)
	backfiller := service.NewBackfiller(extractor, target, engine, cfg.BackfillChunkSize, logger)

	logger.Info("Backfill starting", "job", job)

	// the sentinel-date job destroys data in place; leave a window to abort
	if job == "fechas1899" {
		logger.Warn("Destructive job, starting in 5s (Ctrl+C to abort)")
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			logger.Info("Aborted before start")
			return
		}
	}

	res, err := backfiller.Run(ctx, job)
	if err != nil {
		logger.Error("FATAL: backfill failed", "job", job, "error", err)
		source.Close()
		target.Close()
		os.Exit(1)
	}

	logger.Info("Backfill complete",
		"job", job,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"elapsed_s", int(res.Elapsed.Seconds()),
	)

	for i, re := range res.Errors {
		logger.Error("Backfill row error",
			"index", i+1,
			"key", re.Key,
			"message", re.Err,
			"query", re.Query,
			"params", re.Params,
		)
	}

	// Data already written stays; a non-zero exit flags the run for manual
	// attention when any row failed
	if len(res.Errors) > 0 {
		source.Close()
		target.Close()
		os.Exit(1)
	}
}

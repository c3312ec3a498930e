package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aduanapp/refsync/internal/config"
	"github.com/aduanapp/refsync/internal/db"
	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/runner"
	"github.com/aduanapp/refsync/internal/service"
	"github.com/aduanapp/refsync/internal/upsert"
	"github.com/aduanapp/refsync/pkg/infra"
	"github.com/aduanapp/refsync/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

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
	syncer := service.NewSyncer(extractor, target, engine, cfg.LookbackDays, cfg.ChunkSize, cfg.DebugRefID, logger)

	job := func(ctx context.Context) error {
		_, err := syncer.Run(ctx)
		metrics.Publish(cfg.PushgatewayURL, "refsync", logger)
		return err
	}

	// Loop mode keeps the process resident; the default one-shot mode is
	// what the external hourly scheduler invokes
	if cfg.RunInterval > 0 {
		runner.New(cfg.RunInterval, job, logger).Loop(ctx)
		logger.Info("Scheduler loop stopped")
		return
	}

	if err := job(ctx); err != nil {
		logger.Error("FATAL: sync run failed", "error", err)
		source.Close()
		target.Close()
		os.Exit(1)
	}
}

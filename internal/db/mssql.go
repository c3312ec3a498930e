package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/aduanapp/refsync/internal/config"
)

// SourceRepository wraps the legacy SQL Server connection. The source is
// strictly read-only from this system's perspective.
type SourceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSourceRepository opens the SQL Server pool and verifies connectivity.
func NewSourceRepository(cfg config.SourceConfig, logger *slog.Logger) (*SourceRepository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver connection: %w", err)
	}

	// Modest pool: the hourly job runs sequential queries, and the legacy
	// server serves the production brokerage application at the same time
	db.SetMaxOpenConns(cfg.PoolMax)
	db.SetMaxIdleConns(0)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlserver ping failed: %w", err)
	}

	logger.Info("Connected to SQL Server", "server", cfg.Server, "database", cfg.Database)

	return &SourceRepository{db: db, logger: logger}, nil
}

// DB exposes the pool for the extractor's read-only queries.
func (r *SourceRepository) DB() *sql.DB {
	return r.db
}

// Close gracefully shuts down the source connection pool.
func (r *SourceRepository) Close() error {
	r.logger.Info("Closing SQL Server connection pool")
	return r.db.Close()
}

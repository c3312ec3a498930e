package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/aduanapp/refsync/internal/config"
	"github.com/aduanapp/refsync/internal/models"
)

// CheckpointEpoch is the start-of-history fallback returned when the
// checkpoint row is missing or NULL.
var CheckpointEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TargetRepository owns all access to the reporting MySQL database:
// the `general` and `facturas` tables plus the sync_checkpoint row.
type TargetRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTargetRepository opens the MySQL connection and verifies connectivity.
// The session is pinned to UTC so DATETIME round-trips are unambiguous.
func NewTargetRepository(cfg config.TargetConfig, logger *slog.Logger) (*TargetRepository, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"time_zone": "'+00:00'"}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}

	logger.Info("Connected to MySQL", "host", cfg.Host, "database", cfg.Database)

	return &TargetRepository{db: db, logger: logger}, nil
}

// NewTargetRepositoryWithDB wires an existing handle; used by tests.
func NewTargetRepositoryWithDB(db *sql.DB, logger *slog.Logger) *TargetRepository {
	return &TargetRepository{db: db, logger: logger}
}

// Querier abstracts *sql.DB and *sql.Tx so key-set loads can run either
// inside the sync transaction or standalone (backfill jobs).
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB exposes the raw handle for the non-transactional backfill path.
func (r *TargetRepository) DB() *sql.DB {
	return r.db
}

// BeginTx opens the single write transaction of a sync run.
func (r *TargetRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// Checkpoint reads the stored watermark for the named stream. A missing
// row or NULL value silently falls back to CheckpointEpoch: first runs and
// wiped checkpoints must not fail, they just re-scan from the epoch.
func (r *TargetRepository) Checkpoint(ctx context.Context, name string) (time.Time, error) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var last sql.NullTime
	err := r.db.QueryRowContext(opCtx,
		"SELECT last_dt FROM sync_checkpoint WHERE name = ? LIMIT 1", name,
	).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CheckpointEpoch, nil
		}
		return time.Time{}, fmt.Errorf("failed to read checkpoint %q: %w", name, err)
	}
	if !last.Valid {
		return CheckpointEpoch, nil
	}
	return last.Time, nil
}

// AdvanceCheckpoint blindly overwrites the stored watermark inside the
// run's transaction. Monotonicity is the caller's contract: the orchestrator
// calls this at most once per run, after all upserts and before commit, so
// the watermark and the data it gates land atomically.
func (r *TargetRepository) AdvanceCheckpoint(ctx context.Context, tx *sql.Tx, name string, dt time.Time) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sync_checkpoint (name, last_dt) VALUES (?, ?) ON DUPLICATE KEY UPDATE last_dt = VALUES(last_dt)",
		name, dt,
	)
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint %q: %w", name, err)
	}
	return nil
}

// GeneralKeys loads the set of reference ids already present in `general`.
// Read inside the run transaction so upsert accounting sees the same
// snapshot the statements will hit.
func (r *TargetRepository) GeneralKeys(ctx context.Context, q Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT id_referencias FROM general")
	if err != nil {
		return nil, fmt.Errorf("failed to load general keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan general key: %w", err)
		}
		keys[strconv.FormatInt(id, 10)] = struct{}{}
	}
	return keys, rows.Err()
}

// InvoiceKeys loads the composite (reference, invoice) keys present in
// `facturas`.
func (r *TargetRepository) InvoiceKeys(ctx context.Context, q Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT id_referencias, IDFactura FROM facturas")
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var refID, invoiceID int64
		if err := rows.Scan(&refID, &invoiceID); err != nil {
			return nil, fmt.Errorf("failed to scan invoice key: %w", err)
		}
		keys[models.InvoiceKey(refID, invoiceID)] = struct{}{}
	}
	return keys, rows.Err()
}

// FetchGeneralRow reads one reference back from the target as a
// column-name keyed map. Only used by the single-reference debug trace.
func (r *TargetRepository) FetchGeneralRow(ctx context.Context, refID int64) (map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM general WHERE id_referencias = ?", refID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch general row %d: %w", refID, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan general row %d: %w", refID, err)
	}

	out := make(map[string]any, len(cols))
	for i, c := range cols {
		out[c] = values[i]
	}
	return out, nil
}

// Close gracefully shuts down the target connection pool.
func (r *TargetRepository) Close() error {
	r.logger.Info("Closing MySQL connection pool")
	return r.db.Close()
}

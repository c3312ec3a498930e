package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanapp/refsync/internal/db"
	"github.com/aduanapp/refsync/internal/extract"
	"github.com/aduanapp/refsync/internal/models"
	"github.com/aduanapp/refsync/internal/upsert"
)

type fakeSource struct {
	general  []extract.GeneralRow
	invoices []extract.InvoiceRow
	genErr   error
	invErr   error

	sinceSeen time.Time
}

func (f *fakeSource) General(_ context.Context, since time.Time) ([]extract.GeneralRow, error) {
	f.sinceSeen = since
	return f.general, f.genErr
}

func (f *fakeSource) Invoices(_ context.Context, _ time.Time) ([]extract.InvoiceRow, error) {
	return f.invoices, f.invErr
}

// fakeTarget answers checkpoint and key-set reads from memory but routes
// the transaction itself through sqlmock, so commit/rollback ordering is
// verified for real.
type fakeTarget struct {
	db         *sql.DB
	checkpoint time.Time
	genKeys    map[string]struct{}
	invKeys    map[string]struct{}

	advancedTo *time.Time
}

func (f *fakeTarget) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f *fakeTarget) Checkpoint(_ context.Context, _ string) (time.Time, error) {
	return f.checkpoint, nil
}

func (f *fakeTarget) AdvanceCheckpoint(ctx context.Context, tx *sql.Tx, name string, dt time.Time) error {
	f.advancedTo = &dt
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sync_checkpoint (name, last_dt) VALUES (?, ?) ON DUPLICATE KEY UPDATE last_dt = VALUES(last_dt)",
		name, dt,
	)
	return err
}

func (f *fakeTarget) GeneralKeys(_ context.Context, _ db.Querier) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(f.genKeys))
	for k := range f.genKeys {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *fakeTarget) InvoiceKeys(_ context.Context, _ db.Querier) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(f.invKeys))
	for k := range f.invKeys {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *fakeTarget) FetchGeneralRow(_ context.Context, _ int64) (map[string]any, error) {
	return nil, nil
}

func newSyncerTest(t *testing.T, source *fakeSource, target *fakeTarget) (*Syncer, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	target.db = mockDB

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := upsert.NewEngine(logger, true)
	return NewSyncer(source, target, engine, 50, 100, 0, logger), mock
}

func expectNoWarnings(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT @@SESSION.warning_count")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func generalUpsertQuery(t *testing.T, rowCount int) string {
	t.Helper()
	stmt := upsert.Statement{Table: "general", Columns: models.GeneralColumns, KeyColumns: models.GeneralKeyColumns}
	query, err := stmt.Build(rowCount)
	require.NoError(t, err)
	return regexp.QuoteMeta(query)
}

func invoiceUpsertQuery(t *testing.T, rowCount int) string {
	t.Helper()
	stmt := upsert.Statement{Table: "facturas", Columns: models.InvoiceColumns, KeyColumns: models.InvoiceKeyColumns}
	query, err := stmt.Build(rowCount)
	require.NoError(t, err)
	return regexp.QuoteMeta(query)
}

func TestSyncRunHappyPath(t *testing.T) {
	opened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	invoiceDate := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	source := &fakeSource{
		general: []extract.GeneralRow{{
			RefID:    sql.NullInt64{Int64: 500, Valid: true},
			OpenedAt: sql.NullTime{Time: opened, Valid: true},
		}},
		invoices: []extract.InvoiceRow{{
			RefID:     sql.NullInt64{Int64: 500, Valid: true},
			InvoiceID: sql.NullInt64{Int64: 42, Valid: true},
			Date:      sql.NullTime{Time: invoiceDate, Valid: true},
		}},
	}
	target := &fakeTarget{checkpoint: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)}

	syncer, mock := newSyncerTest(t, source, target)

	shiftedInvoiceDate := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(generalUpsertQuery(t, 1)).WillReturnResult(sqlmock.NewResult(0, 1))
	expectNoWarnings(mock)
	mock.ExpectExec(invoiceUpsertQuery(t, 1)).
		WithArgs(int64(500), int64(42), nil, shiftedInvoiceDate, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectNoWarnings(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_checkpoint")).
		WithArgs("apertura_activos", opened).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)

	// lookback window: 50 days behind the stored checkpoint
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), source.sinceSeen)
	assert.Equal(t, source.sinceSeen, summary.Since)

	assert.Equal(t, 1, summary.General.Selected)
	assert.Equal(t, 1, summary.General.Inserted)
	assert.Equal(t, 1, summary.Invoices.Inserted)

	// the watermark lives in the source time domain, never the shifted one
	require.True(t, summary.Advanced)
	assert.Equal(t, opened, summary.Watermark)
	require.NotNil(t, target.advancedTo)
	assert.Equal(t, opened, *target.advancedTo)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRunRollsBackOnInvoiceFailure(t *testing.T) {
	opened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	source := &fakeSource{
		general: []extract.GeneralRow{{
			RefID:    sql.NullInt64{Int64: 500, Valid: true},
			OpenedAt: sql.NullTime{Time: opened, Valid: true},
		}},
		invoices: []extract.InvoiceRow{{
			RefID:     sql.NullInt64{Int64: 500, Valid: true},
			InvoiceID: sql.NullInt64{Int64: 42, Valid: true},
		}},
	}
	target := &fakeTarget{checkpoint: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)}

	syncer, mock := newSyncerTest(t, source, target)

	mock.ExpectBegin()
	mock.ExpectExec(generalUpsertQuery(t, 1)).WillReturnResult(sqlmock.NewResult(0, 1))
	expectNoWarnings(mock)
	mock.ExpectExec(invoiceUpsertQuery(t, 1)).WillReturnError(errors.New("Deadlock found"))
	mock.ExpectRollback()

	_, err := syncer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice upsert failed")

	// the general rows written before the failure are gone with the rollback
	// and the watermark never moved
	assert.Nil(t, target.advancedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRunEmptyWindow(t *testing.T) {
	source := &fakeSource{}
	target := &fakeTarget{checkpoint: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)}

	syncer, mock := newSyncerTest(t, source, target)

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Advanced, "an empty window must not move the watermark")
	assert.Nil(t, target.advancedTo)
	assert.Zero(t, summary.General.Records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRunExtractionFailure(t *testing.T) {
	source := &fakeSource{genErr: errors.New("connection reset")}
	target := &fakeTarget{checkpoint: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)}

	syncer, mock := newSyncerTest(t, source, target)

	_, err := syncer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "general extraction failed")

	// no transaction was ever opened
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRunDroppedRowsAreCounted(t *testing.T) {
	opened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	source := &fakeSource{
		general: []extract.GeneralRow{
			{RefID: sql.NullInt64{Int64: 500, Valid: true}, OpenedAt: sql.NullTime{Time: opened, Valid: true}},
			{}, // NULL primary key
		},
	}
	target := &fakeTarget{checkpoint: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)}

	syncer, mock := newSyncerTest(t, source, target)

	mock.ExpectBegin()
	mock.ExpectExec(generalUpsertQuery(t, 1)).WillReturnResult(sqlmock.NewResult(0, 1))
	expectNoWarnings(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_checkpoint")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.General.Selected)
	assert.Equal(t, 1, summary.General.Dropped)
	assert.Equal(t, 1, summary.General.Prepared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

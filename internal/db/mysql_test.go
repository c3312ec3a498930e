package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTargetTest(t *testing.T) (*TargetRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTargetRepositoryWithDB(mockDB, logger), mock
}

const checkpointQuery = "SELECT last_dt FROM sync_checkpoint WHERE name = \\? LIMIT 1"

func TestCheckpoint(t *testing.T) {
	t.Run("returns the stored watermark", func(t *testing.T) {
		repo, mock := newTargetTest(t)
		stored := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery(checkpointQuery).WithArgs("apertura_activos").
			WillReturnRows(sqlmock.NewRows([]string{"last_dt"}).AddRow(stored))

		got, err := repo.Checkpoint(context.Background(), "apertura_activos")
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})

	t.Run("missing row falls back to the epoch", func(t *testing.T) {
		repo, mock := newTargetTest(t)

		mock.ExpectQuery(checkpointQuery).WithArgs("apertura_activos").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.Checkpoint(context.Background(), "apertura_activos")
		require.NoError(t, err)
		assert.Equal(t, CheckpointEpoch, got)
	})

	t.Run("NULL value falls back to the epoch", func(t *testing.T) {
		repo, mock := newTargetTest(t)

		mock.ExpectQuery(checkpointQuery).WithArgs("apertura_activos").
			WillReturnRows(sqlmock.NewRows([]string{"last_dt"}).AddRow(nil))

		got, err := repo.Checkpoint(context.Background(), "apertura_activos")
		require.NoError(t, err)
		assert.Equal(t, CheckpointEpoch, got)
	})
}

func TestAdvanceCheckpoint(t *testing.T) {
	repo, mock := newTargetTest(t)
	dt := time.Date(2024, 3, 4, 23, 15, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO sync_checkpoint (name, last_dt) VALUES (?, ?) ON DUPLICATE KEY UPDATE last_dt = VALUES(last_dt)",
	)).WithArgs("apertura_activos", dt).WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.AdvanceCheckpoint(context.Background(), tx, "apertura_activos", dt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneralKeys(t *testing.T) {
	repo, mock := newTargetTest(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_referencias FROM general")).
		WillReturnRows(sqlmock.NewRows([]string{"id_referencias"}).AddRow(500).AddRow(501))

	keys, err := repo.GeneralKeys(context.Background(), repo.DB())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"500": {}, "501": {}}, keys)
}

func TestInvoiceKeys(t *testing.T) {
	repo, mock := newTargetTest(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_referencias, IDFactura FROM facturas")).
		WillReturnRows(sqlmock.NewRows([]string{"id_referencias", "IDFactura"}).
			AddRow(500, 42).AddRow(500, 43))

	keys, err := repo.InvoiceKeys(context.Background(), repo.DB())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"500:42": {}, "500:43": {}}, keys)
}

func TestFetchGeneralRow(t *testing.T) {
	repo, mock := newTargetTest(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM general WHERE id_referencias = ?")).
		WithArgs(int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"id_referencias", "Pedimento"}).AddRow(500, "4012345"))

	row, err := repo.FetchGeneralRow(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, "4012345", row["Pedimento"])
}

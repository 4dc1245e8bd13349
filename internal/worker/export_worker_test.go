package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/sheets"
	"finledger/internal/sheets/memory"
	"finledger/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func addTx(t *testing.T, repo *storage.SQLiteRepository, id, user, desc string, dir core.Direction, cents int64, d core.Date) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTransaction(context.Background(), core.Transaction{
		ID: id, UserID: user, Description: desc, Amount: core.NewMoney(cents), Date: d, Type: dir,
		CreatedBy: user, CreatedAt: now, UpdatedAt: now,
	}))
}

func newWorker(repo *storage.SQLiteRepository, w sheets.LedgerWriter) *ExportWorker {
	ew := NewExportWorker(repo, w, 2)
	ew.now = func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) }
	return ew
}

func TestExportWorker_HandleEvent(t *testing.T) {
	repo := newRepo(t)
	addTx(t, repo, "t1", "u1", "salary", core.Income, 100000, core.NewDate(2024, 1, 1))
	addTx(t, repo, "t2", "u1", "groceries", core.Expense, 2000, core.NewDate(2023, 12, 30))

	out := memory.New()
	w := newWorker(repo, out)

	err := w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventTransactionCreated, "u1", "t1"))
	require.NoError(t, err)

	rows, ok := out.Sheet("Ledger u1")
	require.True(t, ok)
	assert.Equal(t, []any{"2023-12-30", "groceries", "expense", "20.00", ""}, rows[1])
	assert.Equal(t, []any{"2024-01-01", "salary", "income", "1000.00", ""}, rows[2])
	assert.Equal(t, []any{"Summary", "2024-01"}, rows[4])
	assert.Equal(t, []any{"Total", "1000.00", "0.00", "1000.00", 1}, rows[len(rows)-1], "summary covers the current month only")
}

func TestExportWorker_SkipsReminders(t *testing.T) {
	out := memory.New()
	w := newWorker(newRepo(t), out)

	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.EventScheduledReminder, "u1", "s1")))
	assert.Zero(t, out.Writes())
}

func TestExportWorker_WriteError(t *testing.T) {
	out := memory.New()
	out.Err = errors.New("quota exceeded")
	w := newWorker(newRepo(t), out)

	err := w.Export(context.Background(), "u1")
	assert.ErrorIs(t, err, out.Err)
	assert.ErrorIs(t, w.Export(context.Background(), ""), core.ErrEmptyUser)
}

func TestExportWorker_StartupExport(t *testing.T) {
	repo := newRepo(t)
	addTx(t, repo, "t1", "u1", "salary", core.Income, 100000, core.NewDate(2024, 1, 1))
	addTx(t, repo, "t2", "u2", "salary", core.Income, 50000, core.NewDate(2024, 1, 1))
	addTx(t, repo, "t3", "u3", "salary", core.Income, 70000, core.NewDate(2024, 1, 1))

	out := memory.New()
	w := newWorker(repo, out)

	exported, failed, err := w.StartupExport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, exported)
	assert.Zero(t, failed)
	for _, u := range []string{"u1", "u2", "u3"} {
		_, ok := out.Sheet(sheets.TitleFor(u))
		assert.True(t, ok, u)
	}

	out.Err = errors.New("down")
	exported, failed, err = w.StartupExport(context.Background())
	require.NoError(t, err)
	assert.Zero(t, exported)
	assert.Equal(t, 3, failed)
}

// Package worker keeps external copies of the ledger in step with it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/sheets"
)

// LedgerSource reads the collections an export is built from.
type LedgerSource interface {
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// ExportWorker rewrites a user's spreadsheet tab whenever their ledger
// changes. Each write is a full snapshot, so redelivered or reordered events
// converge on the current state.
type ExportWorker struct {
	source      LedgerSource
	writer      sheets.LedgerWriter
	now         func() time.Time
	concurrency int
}

func NewExportWorker(source LedgerSource, writer sheets.LedgerWriter, concurrency int) *ExportWorker {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &ExportWorker{
		source:      source,
		writer:      writer,
		now:         time.Now,
		concurrency: concurrency,
	}
}

// HandleEvent exports the event's user. Reminders carry no change and are
// skipped.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if !event.ChangesLedger() {
		slog.DebugContext(ctx, "Event skipped", "component", "export", "type", event.Type)
		return nil
	}
	return w.Export(ctx, event.UserID)
}

// Export writes the user's transactions and the category summary of the
// current month.
func (w *ExportWorker) Export(ctx context.Context, userID string) error {
	if userID == "" {
		return core.ErrEmptyUser
	}

	txs, err := w.source.ListTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	today := core.Today(w.now())
	report, err := ledger.GroupByCategory(txs, ledger.CategoryFilter{Year: today.Year(), Month: today.Month()})
	if err != nil {
		return fmt.Errorf("summarize month: %w", err)
	}

	title := sheets.TitleFor(userID)
	if err := w.writer.WriteSheet(ctx, title, sheets.LedgerRows(txs, report)); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	slog.InfoContext(ctx, "Ledger exported",
		"component", "export",
		"user_id", userID,
		"sheet", title,
		"transactions", len(txs))
	return nil
}

// StartupExport rewrites every user's tab, covering events missed while
// the worker was down. Failures are counted, not fatal.
func (w *ExportWorker) StartupExport(ctx context.Context) (exported, failed int, err error) {
	users, err := w.source.ListUserIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list users: %w", err)
	}

	results := make([]error, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, userID := range users {
		g.Go(func() error {
			results[i] = w.Export(gctx, userID)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if res != nil {
			failed++
			slog.ErrorContext(ctx, "Startup export failed",
				"component", "export",
				"user_id", users[i],
				"error", res)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"component", "export",
		"users", len(users),
		"exported", exported,
		"failed", failed)
	return exported, failed, nil
}

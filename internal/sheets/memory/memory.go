// Package memory keeps written sheets in process, for tests and for running
// the exporter without a spreadsheet.
package memory

import (
	"context"
	"sync"

	"finledger/internal/sheets"
)

var _ sheets.LedgerWriter = (*Writer)(nil)

type Writer struct {
	mu     sync.Mutex
	sheets map[string][][]any
	writes int
	// Err, when set, is returned by every write.
	Err error
}

func New() *Writer {
	return &Writer{sheets: make(map[string][][]any)}
}

func (w *Writer) WriteSheet(_ context.Context, title string, rows [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = make([]any, len(r))
		copy(cp[i], r)
	}
	w.sheets[title] = cp
	w.writes++
	return nil
}

// Sheet returns the rows last written to title.
func (w *Writer) Sheet(title string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.sheets[title]
	return rows, ok
}

func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

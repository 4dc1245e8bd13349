// Package sheets renders a user's ledger as spreadsheet rows and defines
// where those rows are written.
package sheets

import "context"

// LedgerWriter replaces the whole content of one tab, creating the tab when
// it does not exist yet.
type LedgerWriter interface {
	WriteSheet(ctx context.Context, title string, rows [][]any) error
}

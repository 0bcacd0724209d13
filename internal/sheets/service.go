// Package sheets owns all I/O against the external tabular store: the
// authenticated session, rate-limit retries, the per-month grid cache,
// single-cell and batched writes, and month-sheet creation.
package sheets

import (
	"context"
	"errors"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
)

// ErrSheetNotFound is returned when a month has no worksheet yet.
var ErrSheetNotFound = errors.New("worksheet not found")

// RangeUpdate is one cell write addressed in A1 notation, local to a
// single worksheet.
type RangeUpdate struct {
	Range string
	Value string
}

// Worksheet is one month sheet in the backend.
type Worksheet interface {
	// Values reads the whole grid, blank cells included.
	Values(ctx context.Context) (grid.MonthGrid, error)
	// UpdateCell writes one cell by zero-based coordinates.
	UpdateCell(ctx context.Context, row, col int, value string) error
	// BatchUpdate applies all range writes in one backend call.
	BatchUpdate(ctx context.Context, updates []RangeUpdate) error
	// Overwrite replaces a rectangular region starting at the A1 anchor.
	Overwrite(ctx context.Context, anchor string, values [][]string) error
}

// Backend is the external spreadsheet session. Implementations must
// return ErrSheetNotFound (wrapped or bare) from Worksheet when the
// named sheet does not exist.
type Backend interface {
	Worksheet(ctx context.Context, name string) (Worksheet, error)
	AddWorksheet(ctx context.Context, name string, rows, cols int) (Worksheet, error)
}

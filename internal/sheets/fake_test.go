package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
)

// fakeBackend is an in-memory Backend for tests. Worksheets are stored
// as mutable grids; transient failures can be injected per call.
type fakeBackend struct {
	mu         sync.Mutex
	worksheets map[string]*fakeWorksheet
	openErrs   []error // popped one per Worksheet call
	reads      int
	writes     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{worksheets: make(map[string]*fakeWorksheet)}
}

func (b *fakeBackend) addSheet(name string, g grid.MonthGrid) *fakeWorksheet {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := &fakeWorksheet{backend: b, name: name, grid: g}
	b.worksheets[name] = ws
	return ws
}

func (b *fakeBackend) Worksheet(_ context.Context, name string) (Worksheet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.openErrs) > 0 {
		err := b.openErrs[0]
		b.openErrs = b.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	ws, ok := b.worksheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return ws, nil
}

func (b *fakeBackend) AddWorksheet(_ context.Context, name string, rows, cols int) (Worksheet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := &fakeWorksheet{backend: b, name: name, grid: make(grid.MonthGrid, 0, rows)}
	b.worksheets[name] = ws
	return ws, nil
}

type fakeWorksheet struct {
	backend *fakeBackend
	name    string
	grid    grid.MonthGrid
}

func (w *fakeWorksheet) Values(context.Context) (grid.MonthGrid, error) {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.reads++
	out := make(grid.MonthGrid, len(w.grid))
	for i, row := range w.grid {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (w *fakeWorksheet) UpdateCell(_ context.Context, row, col int, value string) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.writes++
	w.set(row, col, value)
	return nil
}

func (w *fakeWorksheet) BatchUpdate(_ context.Context, updates []RangeUpdate) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.writes += len(updates)
	for _, u := range updates {
		row, col, err := parseA1(u.Range)
		if err != nil {
			return err
		}
		w.set(row, col, u.Value)
	}
	return nil
}

func (w *fakeWorksheet) Overwrite(_ context.Context, anchor string, values [][]string) error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	row, col, err := parseA1(anchor)
	if err != nil {
		return err
	}
	for i, r := range values {
		for j, v := range r {
			w.set(row+i, col+j, v)
		}
	}
	return nil
}

func (w *fakeWorksheet) set(row, col int, value string) {
	for len(w.grid) <= row {
		w.grid = append(w.grid, nil)
	}
	for len(w.grid[row]) <= col {
		w.grid[row] = append(w.grid[row], "")
	}
	w.grid[row][col] = value
}

// parseA1 handles single-letter-prefix references like "B4" or "AA12".
func parseA1(ref string) (row, col int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("bad A1 reference %q", ref)
	}
	n, err := strconv.Atoi(strings.TrimSpace(ref[i:]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad A1 reference %q", ref)
	}
	return n - 1, col - 1, nil
}

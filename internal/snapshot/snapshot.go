// Package snapshot detects schedule edits made outside the bot. A
// capture reads the three month sheets around "now", flattens them into
// a key→value map, and persists it; the diff against the previous
// persisted capture yields the externally changed cells.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
	"github.com/Monsieur0x/suppvoicebot/internal/history"
)

// Reader is the slice of the sheets gateway the differ needs: a fresh,
// cache-bypassing whole-grid read.
type Reader interface {
	ReadMonthFresh(ctx context.Context, month string) (grid.MonthGrid, error)
}

// Change is one externally edited cell.
type Change struct {
	Name string
	Date string
	Old  string
	New  string
}

// Differ owns the persisted snapshot and computes diffs against it.
type Differ struct {
	mu     sync.Mutex
	path   string
	reader Reader
	now    func() time.Time
	log    *zap.Logger
	snap   map[string]string
}

// Load creates a differ, restoring the prior snapshot from disk when
// one exists.
func Load(path string, reader Reader, log *zap.Logger) *Differ {
	d := &Differ{
		path:   path,
		reader: reader,
		now:    time.Now,
		log:    log,
		snap:   make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("failed to read snapshot file", zap.String("path", path), zap.Error(err))
		}
		return d
	}
	if err := json.Unmarshal(data, &d.snap); err != nil {
		log.Error("failed to parse snapshot file", zap.String("path", path), zap.Error(err))
		d.snap = make(map[string]string)
	}
	return d
}

// SetClock overrides the clock, for tests.
func (d *Differ) SetClock(now func() time.Time) { d.now = now }

// Capture reads the months adjacent to now, persists the new snapshot,
// and returns the changes relative to the previous one. The first-ever
// capture is a baseline: it stores the snapshot and reports zero
// changes rather than diffing against nothing.
func (d *Differ) Capture(ctx context.Context) (changes []Change, baseline bool, err error) {
	current, err := d.observe(ctx)
	if err != nil {
		return nil, false, err
	}

	d.mu.Lock()
	previous := d.snap
	baseline = len(previous) == 0
	d.snap = current
	d.mu.Unlock()

	if err := d.persist(current); err != nil {
		return nil, false, err
	}
	if baseline {
		return nil, true, nil
	}
	return Diff(previous, current), false, nil
}

// observe reads the previous, current and next month grids in parallel
// and flattens every employee×date cell into one mapping. A month that
// fails to read is logged and skipped; its keys simply stay absent.
func (d *Differ) observe(ctx context.Context) (map[string]string, error) {
	months := adjacentMonths(d.now())

	var mu sync.Mutex
	result := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for _, month := range months {
		month := month
		g.Go(func() error {
			values, err := d.reader.ReadMonthFresh(gctx, month)
			if err != nil {
				d.log.Warn("snapshot skipping month",
					zap.String("month", month), zap.Error(err))
				return nil
			}
			flat := Flatten(values)
			mu.Lock()
			for k, v := range flat {
				result[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Flatten turns a month grid into key→value pairs, one per employee and
// date row. The key reuses the history key shape: name⊕date-cell text.
func Flatten(g grid.MonthGrid) map[string]string {
	out := make(map[string]string)
	if len(g) <= grid.HeaderRow {
		return out
	}
	header := g[grid.HeaderRow]
	for i := grid.DataStart; i < len(g); i++ {
		row := g[i]
		if len(row) == 0 {
			continue
		}
		dateKey := strings.TrimSpace(row[0])
		if dateKey == "" {
			continue
		}
		for col, rawName := range header {
			name := strings.TrimSpace(rawName)
			if name == "" || col >= len(row) {
				continue
			}
			out[history.Key(name, dateKey)] = strings.TrimSpace(row[col])
		}
	}
	return out
}

// Diff reports cells whose value differs between the two snapshots.
// Keys present on only one side (new dates, new employees) are not
// changes. Output is sorted by key so results are deterministic.
func Diff(previous, current map[string]string) []Change {
	keys := make([]string, 0, len(previous))
	for k := range previous {
		keys = append(keys, k)
	}
	for k := range current {
		if _, ok := previous[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var changes []Change
	for _, k := range keys {
		oldVal, oldOK := previous[k]
		newVal, newOK := current[k]
		if !oldOK || !newOK || oldVal == newVal {
			continue
		}
		name, date := history.SplitKey(k)
		changes = append(changes, Change{Name: name, Date: date, Old: oldVal, New: newVal})
	}
	return changes
}

// adjacentMonths returns the distinct month numbers of the previous,
// current and next calendar month around t.
func adjacentMonths(t time.Time) []string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	set := map[string]bool{}
	var months []string
	for _, m := range []time.Time{first.AddDate(0, 0, -1), first, first.AddDate(0, 1, 0)} {
		key := fmt.Sprintf("%02d", int(m.Month()))
		if !set[key] {
			set[key] = true
			months = append(months, key)
		}
	}
	return months
}

func (d *Differ) persist(snap map[string]string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		d.log.Error("failed to save snapshot", zap.String("path", d.path), zap.Error(err))
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

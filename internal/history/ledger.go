// Package history keeps the bounded, disk-persisted change log that
// backs undo. Entries are keyed by employee and "DD.MM" date; the
// oldest entries fall off first when the ledger is full.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// ErrNoHistory is returned by Undo when no stored value exists for the
// key. An undo is consumed exactly once.
var ErrNoHistory = errors.New("no recorded value for this employee and date")

// Entry is one recorded change.
type Entry struct {
	Old       string    `json:"old"`
	New       string    `json:"new"`
	ChangedAt time.Time `json:"changed_at"`
}

// Record pairs a key with its entry for listings and persistence. The
// ledger file is an ordered array of these, oldest first.
type Record struct {
	Key string `json:"key"`
	Entry
}

// Key builds the ledger key for an employee and a "DD.MM" date.
func Key(name, date string) string {
	return name + "_" + date
}

// SplitKey recovers the employee and date from a ledger key.
func SplitKey(key string) (name, date string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '_' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// Ledger is the insertion-ordered bounded change log. Every mutation is
// synchronously flushed to disk as a whole-file overwrite. fileMu is
// taken for the whole mutate-and-flush sequence so snapshots reach disk
// in mutation order; mu alone guards the in-memory maps and is never
// held across the write.
type Ledger struct {
	mu      sync.Mutex
	fileMu  sync.Mutex
	path    string
	max     int
	keys    []string
	entries map[string]Entry
	now     func() time.Time
	log     *zap.Logger
}

// Load opens the ledger at path, tolerating a missing file. A corrupt
// file is logged and treated as empty rather than blocking startup.
func Load(path string, max int, log *zap.Logger) *Ledger {
	l := &Ledger{
		path:    path,
		max:     max,
		entries: make(map[string]Entry),
		now:     time.Now,
		log:     log,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("failed to read history file", zap.String("path", path), zap.Error(err))
		}
		return l
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Error("failed to parse history file", zap.String("path", path), zap.Error(err))
		return l
	}
	for _, r := range records {
		if _, seen := l.entries[r.Key]; !seen {
			l.keys = append(l.keys, r.Key)
		}
		l.entries[r.Key] = r.Entry
	}
	return l
}

// SetClock overrides the clock, for tests.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Record stores old/new for the key, evicting the oldest entry first
// when full. An existing key is overwritten in place, keeping its
// insertion position. The ledger is persisted before returning.
func (l *Ledger) Record(key, oldValue, newValue string) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	l.mu.Lock()
	if _, exists := l.entries[key]; !exists {
		if len(l.keys) >= l.max && len(l.keys) > 0 {
			oldest := l.keys[0]
			l.keys = l.keys[1:]
			delete(l.entries, oldest)
		}
		l.keys = append(l.keys, key)
	}
	l.entries[key] = Entry{Old: oldValue, New: newValue, ChangedAt: l.now()}
	records := l.snapshotLocked()
	l.mu.Unlock()
	return l.persist(records)
}

// Undo returns the stored old value for the key and deletes the entry.
// A second undo without an intervening write fails with ErrNoHistory.
func (l *Ledger) Undo(key string) (string, error) {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		l.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNoHistory, key)
	}
	delete(l.entries, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	records := l.snapshotLocked()
	l.mu.Unlock()
	if err := l.persist(records); err != nil {
		return "", err
	}
	return e.Old, nil
}

// Peek returns the stored old value for the key without consuming the
// entry. Callers that write the value somewhere first use this and call
// Undo only once the write has landed.
func (l *Ledger) Peek(key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHistory, key)
	}
	return e.Old, nil
}

// Len reports the number of stored entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Recent returns the newest n records, oldest of them first. Read-only;
// insertion order is untouched.
func (l *Ledger) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.keys) - n
	if start < 0 {
		start = 0
	}
	out := make([]Record, 0, len(l.keys)-start)
	for _, k := range l.keys[start:] {
		out = append(out, Record{Key: k, Entry: l.entries[k]})
	}
	return out
}

// InRange returns records whose "DD.MM" date falls within [from, to],
// resolved against the given year. Keys with unparseable dates are
// skipped.
func (l *Ledger) InRange(from, to time.Time, year int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, k := range l.keys {
		_, date := SplitKey(k)
		d, err := schedule.ResolveDate(date, year)
		if err != nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, Record{Key: k, Entry: l.entries[k]})
	}
	return out
}

// snapshotLocked copies the ordered records; callers hold mu. The disk
// write happens after mu is released so readers are never blocked on
// I/O; fileMu keeps the writes themselves in order.
func (l *Ledger) snapshotLocked() []Record {
	records := make([]Record, 0, len(l.keys))
	for _, k := range l.keys {
		records = append(records, Record{Key: k, Entry: l.entries[k]})
	}
	return records
}

func (l *Ledger) persist(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		l.log.Error("failed to save history", zap.String("path", l.path), zap.Error(err))
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

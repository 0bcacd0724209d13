package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

const watcherRoster = `
anchor_date: "01.02.2025"
employees:
  - name: Alice
    anchor_pos: 0
`

func TestRosterWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "employees.yaml")
	if err := os.WriteFile(path, []byte(watcherRoster), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *schedule.Roster, 1)
	rw, err := NewRosterWatcher(path, func(r *schedule.Roster) {
		select {
		case reloaded <- r:
		default:
		}
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rw.Stop()

	updated := watcherRoster + `  - name: Bob
    anchor_pos: 2
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-reloaded:
		if len(r.Employees) != 2 {
			t.Fatalf("unexpected roster after reload: %+v", r.Employees)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestRosterWatcherKeepsPreviousOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "employees.yaml")
	if err := os.WriteFile(path, []byte(watcherRoster), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *schedule.Roster, 1)
	rw, err := NewRosterWatcher(path, func(r *schedule.Roster) {
		reloaded <- r
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rw.Stop()

	if err := os.WriteFile(path, []byte("anchor_date: [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-reloaded:
		t.Fatalf("callback fired for invalid roster: %+v", r)
	case <-time.After(1 * time.Second):
	}
}

func TestRosterWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "employees.yaml")
	if err := os.WriteFile(path, []byte(watcherRoster), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *schedule.Roster, 1)
	rw, err := NewRosterWatcher(path, func(r *schedule.Roster) {
		reloaded <- r
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rw.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("callback fired for unrelated file")
	case <-time.After(1 * time.Second):
	}
}

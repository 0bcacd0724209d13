package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "bot.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContextRoundTrip(t *testing.T) {
	s := newTestStore(t)

	for _, msg := range []string{"first", "second", "third"} {
		if err := s.AppendContext(7, msg); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentContext(7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "second" || got[1] != "third" {
		t.Fatalf("unexpected context: %v", got)
	}
}

func TestContextTrimmedToDepth(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < contextDepth+5; i++ {
		if err := s.AppendContext(7, "msg"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentContext(7, contextDepth+5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != contextDepth {
		t.Fatalf("backlog not trimmed: %d entries", len(got))
	}
}

func TestContextIsolatedPerUser(t *testing.T) {
	s := newTestStore(t)

	if err := s.AppendContext(1, "from one"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendContext(2, "from two"); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentContext(1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "from one" {
		t.Fatalf("context leaked across users: %v", got)
	}
}

func TestMutationAudit(t *testing.T) {
	s := newTestStore(t)

	applied := []schedule.Update{
		{Name: "Alice", Date: "18.02", Value: "13:00 - 21:00"},
		{Name: "Bob", Date: "19.02", Value: "Day off"},
	}
	old := map[string]string{
		"Alice_18.02": "10:00 - 19:00",
		"Bob_19.02":   "12:00 - 21:00",
	}
	if err := s.RecordMutations("batch-1", 7, applied, old); err != nil {
		t.Fatal(err)
	}

	got, err := s.BatchMutations("batch-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 audit rows, got %d", len(got))
	}
	if got[0].Name != "Alice" || got[0].Old != "10:00 - 19:00" || got[0].New != "13:00 - 21:00" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].User != 7 || got[1].BatchID != "batch-1" {
		t.Fatalf("unexpected second row: %+v", got[1])
	}
}

func TestBatchMutationsUnknownBatch(t *testing.T) {
	s := newTestStore(t)

	got, err := s.BatchMutations("nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %v", got)
	}
}

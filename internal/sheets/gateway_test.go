package sheets

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
)

var testSheetNames = map[string]string{"02": "February_1", "04": "April_1", "05": "May_1"}
var testMonthNames = map[string]string{"02": "February", "04": "April", "05": "May"}

func februaryGrid() grid.MonthGrid {
	return grid.MonthGrid{
		{"", "February"},
		{"", "Alice", "Bob"},
		{"17.02.2025", "09:00 - 18:00", "Day off"},
		{"18.02.2025", "Day off", "13:00 - 21:00"},
	}
}

func newTestGateway(backend Backend, opts ...GatewayOption) *Gateway {
	connect := func(context.Context) (Backend, error) { return backend, nil }
	opts = append([]GatewayOption{
		WithBackoff(BackoffPolicy{MaxAttempts: 5, Base: time.Millisecond}),
	}, opts...)
	return NewGateway(connect, testSheetNames, testMonthNames, time.Minute, zap.NewNop(), opts...)
}

func TestReadMonth_CachesSecondRead(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	gw := newTestGateway(backend)
	ctx := context.Background()

	if _, err := gw.ReadMonth(ctx, "02"); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := gw.ReadMonth(ctx, "02"); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if backend.reads != 1 {
		t.Errorf("backend reads = %d, want 1 (second read served from cache)", backend.reads)
	}
}

func TestWriteCell_InvalidatesBeforeNextRead(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	gw := newTestGateway(backend)
	ctx := context.Background()

	g, err := gw.ReadMonth(ctx, "02")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if g.Cell(3, 2) != "13:00 - 21:00" {
		t.Fatalf("precondition cell = %q", g.Cell(3, 2))
	}

	ws, err := gw.OpenMonth(ctx, "02")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := gw.WriteCell(ctx, ws, "02", 3, 2, "10:00 - 19:00"); err != nil {
		t.Fatalf("write: %v", err)
	}

	g, err = gw.ReadMonth(ctx, "02")
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if g.Cell(3, 2) != "10:00 - 19:00" {
		t.Errorf("read after write returned stale cell %q", g.Cell(3, 2))
	}
}

func TestOpenMonth_RetriesRateLimit(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	backend.openErrs = []error{
		fmt.Errorf("googleapi: Error 429: rate limit exceeded"),
		fmt.Errorf("googleapi: Error 429: rate limit exceeded"),
	}
	gw := newTestGateway(backend)

	if _, err := gw.OpenMonth(context.Background(), "02"); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
}

func TestOpenMonth_NonTransientSurfacesImmediately(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	permanent := errors.New("permission denied")
	backend.openErrs = []error{permanent}
	gw := newTestGateway(backend)

	_, err := gw.OpenMonth(context.Background(), "02")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error to surface, got %v", err)
	}
	if len(backend.openErrs) != 0 {
		t.Error("error should have been consumed exactly once")
	}
}

func TestOpenMonth_RateLimitExhaustsAttempts(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	for i := 0; i < 5; i++ {
		backend.openErrs = append(backend.openErrs, fmt.Errorf("googleapi: Error 429: rate limit"))
	}
	gw := newTestGateway(backend)

	_, err := gw.OpenMonth(context.Background(), "02")
	if err == nil || !IsRateLimit(err) {
		t.Fatalf("expected rate-limit error after final attempt, got %v", err)
	}
}

func TestOpenMonth_UnconfiguredMonth(t *testing.T) {
	gw := newTestGateway(newFakeBackend())
	_, err := gw.OpenMonth(context.Background(), "13")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestCreateMonth_PopulatesTemplate(t *testing.T) {
	backend := newFakeBackend()
	gw := newTestGateway(backend)
	ctx := context.Background()

	ws, err := gw.CreateMonth(ctx, "04", 2026, []string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("CreateMonth: %v", err)
	}
	g, err := ws.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if g.Cell(grid.TitleRow, 1) != "April" {
		t.Errorf("title cell = %q", g.Cell(grid.TitleRow, 1))
	}
	if g.Cell(grid.HeaderRow, 2) != "Bob" {
		t.Errorf("header cell = %q", g.Cell(grid.HeaderRow, 2))
	}
	if g.Cell(grid.DataStart, 0) != "01.04.2026" {
		t.Errorf("first date cell = %q", g.Cell(grid.DataStart, 0))
	}
	if g.Cell(grid.DataStart+29, 0) != "30.04.2026" {
		t.Errorf("last date cell = %q", g.Cell(grid.DataStart+29, 0))
	}
}

func TestSessionRevalidation(t *testing.T) {
	backend := newFakeBackend()
	backend.addSheet("February_1", februaryGrid())
	connects := 0
	connect := func(context.Context) (Backend, error) {
		connects++
		return backend, nil
	}
	now := time.Now()
	clock := func() time.Time { return now }
	gw := NewGateway(connect, testSheetNames, testMonthNames, time.Nanosecond, zap.NewNop(),
		WithClock(func() time.Time { return clock() }),
		WithSessionCheckInterval(time.Minute),
		WithBackoff(BackoffPolicy{MaxAttempts: 1, Base: time.Millisecond}))
	ctx := context.Background()

	if _, err := gw.OpenMonth(ctx, "02"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := gw.OpenMonth(ctx, "02"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if connects != 1 {
		t.Fatalf("connects = %d, want 1 within the check interval", connects)
	}

	now = now.Add(2 * time.Minute)
	if _, err := gw.OpenMonth(ctx, "02"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if connects != 2 {
		t.Errorf("connects = %d, want 2 after the interval elapsed", connects)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("02", februaryGrid())
	if _, ok := c.Get("02"); !ok {
		t.Fatal("fresh entry should hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("02"); ok {
		t.Fatal("entry older than TTL must be treated as absent")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("02", februaryGrid())
	c.Invalidate("02")
	if _, ok := c.Get("02"); ok {
		t.Fatal("invalidated entry must be absent")
	}
}

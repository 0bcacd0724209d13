package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// ioPermits caps concurrent backend calls, matching the two-worker pool
// the schedule bot has always run with.
const ioPermits = 2

// Connector lazily establishes the backend session. The gateway calls
// it again when the session is older than the revalidation interval.
type Connector func(ctx context.Context) (Backend, error)

// Gateway mediates every read and write against the external store:
// cached reads, rate-limit retries, per-month batching, and month-sheet
// creation from a template.
type Gateway struct {
	connect    Connector
	sheetNames map[string]string // month "01".."12" -> worksheet title
	monthNames map[string]string // month -> human title for new sheets
	cache      *Cache
	sem        *semaphore.Weighted
	retry      BackoffPolicy
	log        *zap.Logger

	mu          sync.Mutex
	backend     Backend
	checkedAt   time.Time
	checkEvery  time.Duration
	now         func() time.Time
}

// GatewayOption tweaks gateway construction.
type GatewayOption func(*Gateway)

// WithClock overrides the gateway clock, for tests.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// WithBackoff overrides the retry policy.
func WithBackoff(p BackoffPolicy) GatewayOption {
	return func(g *Gateway) { g.retry = p }
}

// WithSessionCheckInterval overrides how often the session is
// re-established.
func WithSessionCheckInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.checkEvery = d }
}

// NewGateway wires a gateway over the connector. sheetNames maps month
// numbers to worksheet titles; monthNames supplies the display title
// used when creating a fresh sheet.
func NewGateway(connect Connector, sheetNames, monthNames map[string]string, cacheTTL time.Duration, log *zap.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		connect:    connect,
		sheetNames: sheetNames,
		monthNames: monthNames,
		cache:      NewCache(cacheTTL),
		sem:        semaphore.NewWeighted(ioPermits),
		retry:      DefaultBackoff(),
		log:        log,
		checkEvery: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// session returns the live backend, reconnecting when the last check is
// older than the interval. The lock never spans the connect call's
// result usage by callers; it only guards the cached handle swap.
func (g *Gateway) session(ctx context.Context) (Backend, error) {
	g.mu.Lock()
	if g.backend != nil && g.now().Sub(g.checkedAt) < g.checkEvery {
		b := g.backend
		g.mu.Unlock()
		return b, nil
	}
	g.mu.Unlock()

	g.log.Info("reconnecting to spreadsheet backend")
	b, err := g.connect(ctx)
	if err != nil {
		g.log.Error("backend connection failed", zap.Error(err))
		return nil, fmt.Errorf("backend connection failed: %w", err)
	}

	g.mu.Lock()
	g.backend = b
	g.checkedAt = g.now()
	g.mu.Unlock()
	return b, nil
}

// OpenMonth resolves the worksheet for a month, retrying rate limits
// with exponential backoff. A month with no configured sheet title or
// no existing worksheet surfaces ErrSheetNotFound.
func (g *Gateway) OpenMonth(ctx context.Context, month string) (Worksheet, error) {
	title, ok := g.sheetNames[month]
	if !ok {
		return nil, fmt.Errorf("%w: no sheet configured for month %s", ErrSheetNotFound, month)
	}
	backend, err := g.session(ctx)
	if err != nil {
		return nil, err
	}

	var ws Worksheet
	err = Retry(ctx, g.retry, IsRateLimit, func() error {
		var openErr error
		ws, openErr = backend.Worksheet(ctx, title)
		if openErr != nil && IsRateLimit(openErr) {
			g.log.Warn("rate limited opening worksheet, backing off",
				zap.String("sheet", title))
		}
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// ReadMonth returns the month grid, served from cache when fresh.
func (g *Gateway) ReadMonth(ctx context.Context, month string) (grid.MonthGrid, error) {
	if cached, ok := g.cache.Get(month); ok {
		return cached, nil
	}
	values, err := g.ReadMonthFresh(ctx, month)
	if err != nil {
		return nil, err
	}
	g.cache.Put(month, values)
	return values, nil
}

// ReadMonthFresh always reads from the backend, bypassing and not
// touching the cache. The snapshot capture uses this so the diff never
// compares against a stale grid.
func (g *Gateway) ReadMonthFresh(ctx context.Context, month string) (grid.MonthGrid, error) {
	_, values, err := g.OpenAndRead(ctx, month)
	return values, err
}

// OpenAndRead resolves the month worksheet and reads it fresh in one
// pass, so read-modify-write sequences reuse the worksheet instead of
// resolving it twice.
func (g *Gateway) OpenAndRead(ctx context.Context, month string) (Worksheet, grid.MonthGrid, error) {
	ws, err := g.OpenMonth(ctx, month)
	if err != nil {
		return nil, nil, err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer g.sem.Release(1)
	values, err := ws.Values(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ws, values, nil
}

// Invalidate evicts one month from the cache.
func (g *Gateway) Invalidate(month string) {
	g.cache.Invalidate(month)
}

// InvalidateAll evicts every cached month.
func (g *Gateway) InvalidateAll() {
	g.cache.Clear()
}

// WriteCell writes one cell and invalidates the month before returning.
func (g *Gateway) WriteCell(ctx context.Context, ws Worksheet, month string, row, col int, value string) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	err := ws.UpdateCell(ctx, row, col, value)
	g.sem.Release(1)
	if err != nil {
		return err
	}
	g.cache.Invalidate(month)
	return nil
}

// WriteBatch applies all updates to the month's worksheet in one call
// and invalidates the month before returning.
func (g *Gateway) WriteBatch(ctx context.Context, ws Worksheet, month string, updates []RangeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	err := ws.BatchUpdate(ctx, updates)
	g.sem.Release(1)
	if err != nil {
		return err
	}
	g.cache.Invalidate(month)
	g.log.Info("batch applied",
		zap.String("month", month),
		zap.Int("cells", len(updates)))
	return nil
}

// CreateMonth adds a worksheet for the month, pre-populated with the
// title row, the employee header, and one labeled row per calendar day.
func (g *Gateway) CreateMonth(ctx context.Context, month string, year int, names []string) (Worksheet, error) {
	title, ok := g.sheetNames[month]
	if !ok {
		return nil, fmt.Errorf("%w: no sheet configured for month %s", ErrSheetNotFound, month)
	}
	display := g.monthNames[month]
	if display == "" {
		display = title
	}
	days, err := schedule.DaysIn(month, year)
	if err != nil {
		return nil, err
	}
	template, err := grid.NewMonthTemplate(display, names, month, year)
	if err != nil {
		return nil, err
	}

	backend, err := g.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	ws, err := backend.AddWorksheet(ctx, title, days+5, len(names)+1)
	if err != nil {
		return nil, err
	}
	if err := ws.Overwrite(ctx, "A1", template); err != nil {
		return nil, fmt.Errorf("failed to populate new sheet %s: %w", title, err)
	}
	g.cache.Invalidate(month)
	g.log.Info("worksheet created",
		zap.String("sheet", title),
		zap.Int("days", days))
	return ws, nil
}

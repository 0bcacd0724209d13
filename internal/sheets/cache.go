package sheets

import (
	"sync"
	"time"

	"github.com/Monsieur0x/suppvoicebot/internal/grid"
)

// Cache holds recently read month grids. Entries older than the TTL are
// treated as absent. Failed reads are never cached. The mutex guards
// only the map; fetches happen outside it.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	grid      grid.MonthGrid
	fetchedAt time.Time
}

// NewCache creates a cache with the given TTL, applied uniformly to all
// months.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached grid for the month if it is still fresh.
func (c *Cache) Get(month string) (grid.MonthGrid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[month]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, month)
		return nil, false
	}
	return e.grid, true
}

// Put stores a freshly fetched grid.
func (c *Cache) Put(month string, g grid.MonthGrid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[month] = cacheEntry{grid: g, fetchedAt: c.now()}
}

// Invalidate unconditionally evicts the month.
func (c *Cache) Invalidate(month string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, month)
}

// Clear evicts everything. Used after a snapshot capture so reads see
// whatever the capture just observed.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

package history

import (
	"sync"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// LastBatch remembers, per user, the most recently applied batch of
// mutations. It exists only as the undo source for "undo last batch":
// each applied batch overwrites the previous one, and an undo consumes
// the record.
type LastBatch struct {
	mu sync.Mutex
	m  map[int64][]schedule.Update
}

// NewLastBatch creates an empty table.
func NewLastBatch() *LastBatch {
	return &LastBatch{m: make(map[int64][]schedule.Update)}
}

// Set records the batch just applied for the user.
func (b *LastBatch) Set(user int64, items []schedule.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[user] = items
}

// Take returns and clears the user's last applied batch.
func (b *LastBatch) Take(user int64) ([]schedule.Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items, ok := b.m[user]
	if !ok || len(items) == 0 {
		return nil, false
	}
	delete(b.m, user)
	return items, true
}

// Package pending gates bulk schedule mutations behind a time-boxed
// yes/no confirmation. At most one unresolved action of each kind may
// exist per user; a repeat request of the same kind overwrites the
// earlier one (latest request wins).
package pending

import (
	"strings"
	"sync"
	"time"

	"github.com/Monsieur0x/suppvoicebot/internal/planner"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// Kind discriminates the two gated bulk operations.
type Kind int

const (
	KindFill Kind = iota
	KindBatch
)

// kindOrder fixes which pending action a reply resolves first when a
// user somehow holds both.
var kindOrder = []Kind{KindFill, KindBatch}

// Action is one unconfirmed bulk mutation.
type Action struct {
	Kind      Kind
	Fill      planner.FillPlan
	Batch     []schedule.Update
	ExpiresAt time.Time
}

// Decision is the outcome of interpreting a user's reply.
type Decision int

const (
	// DecisionNone: no pending action was touched; the reply falls
	// through to normal command processing.
	DecisionNone Decision = iota
	DecisionConfirmed
	DecisionCancelled
	DecisionExpired
)

var yesWords = map[string]bool{
	"yes": true, "yes!": true, "y": true, "yeah": true,
	"yep": true, "confirm": true, "ok": true, "okay": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "nope": true, "cancel": true,
}

// Store holds at most one pending action per (user, kind).
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	actions map[int64]map[Kind]Action
}

// NewStore creates a store whose actions expire after ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		actions: make(map[int64]map[Kind]Action),
	}
}

// SetClock overrides the clock, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// TTL returns the confirmation window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put records a pending action, stamping its expiry. An unresolved
// action of the same kind for the same user is silently replaced.
func (s *Store) Put(user int64, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ExpiresAt = s.now().Add(s.ttl)
	if s.actions[user] == nil {
		s.actions[user] = make(map[Kind]Action)
	}
	s.actions[user][a.Kind] = a
}

// Resolve interprets reply against the user's pending actions. An
// expired slot is cleared and reported regardless of reply content. An
// affirmative reply consumes and returns the action; a negative reply
// discards it. Any other reply leaves everything untouched and returns
// DecisionNone so the text falls through to normal processing.
func (s *Store) Resolve(user int64, reply string) (Action, Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.actions[user]
	if len(slots) == 0 {
		return Action{}, DecisionNone
	}

	word := strings.ToLower(strings.TrimSpace(reply))
	for _, kind := range kindOrder {
		a, ok := slots[kind]
		if !ok {
			continue
		}
		if s.now().After(a.ExpiresAt) {
			delete(slots, kind)
			return a, DecisionExpired
		}
		if yesWords[word] {
			delete(slots, kind)
			return a, DecisionConfirmed
		}
		if noWords[word] {
			delete(slots, kind)
			return a, DecisionCancelled
		}
	}
	return Action{}, DecisionNone
}

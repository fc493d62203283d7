// Package session keeps short-lived per-user conversation state: when a
// user last wrote (for greetings), which inbound message ids were already
// handled, and a pending clarification awaiting a numeric answer.
//
// Every entry expires on its own; nothing here survives a restart.
package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults used by New when an option is not set.
const (
	DefaultSize     = 4096
	DefaultTTL      = 24 * time.Hour
	DefaultGreetGap = 5 * time.Minute
	pendingTTL      = 10 * time.Minute
	messageIDTTL    = time.Hour
)

// Action names what a pending clarification will do with the chosen entry.
type Action string

const (
	ActionDeleteReminder     Action = "delete_reminder"
	ActionRescheduleReminder Action = "reschedule_reminder"
	ActionMarkDone           Action = "mark_done"
)

// Pending is a clarification question waiting for "1", "2", ...
// Positions are the 1-based list positions offered to the user, in the
// order they were shown. When is the time expression for reschedules.
type Pending struct {
	Action    Action
	Positions []int
	When      string
}

// Store holds the state for every active user.
type Store struct {
	mu       sync.Mutex
	lastSeen *expirable.LRU[string, time.Time]
	messages *expirable.LRU[string, struct{}]
	pending  *expirable.LRU[string, Pending]
	greetGap time.Duration
	now      func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithGreetGap sets the silence after which a user is greeted again.
func WithGreetGap(d time.Duration) Option {
	return func(s *Store) { s.greetGap = d }
}

// WithClock replaces time.Now for greeting decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store holding up to size users for ttl after their last message.
func New(size int, ttl time.Duration, opts ...Option) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		lastSeen: expirable.NewLRU[string, time.Time](size, nil, ttl),
		messages: expirable.NewLRU[string, struct{}](size, nil, messageIDTTL),
		pending:  expirable.NewLRU[string, Pending](size, nil, pendingTTL),
		greetGap: DefaultGreetGap,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Greeting tells how a reply should open.
type Greeting int

const (
	GreetNone Greeting = iota
	// GreetFirst is for a user not seen before (or forgotten after the TTL).
	GreetFirst
	// GreetAgain is for a user back after greetGap of silence.
	GreetAgain
)

// Touch records a message from userID and reports how to greet the user.
func (s *Store) Touch(userID string) Greeting {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	last, ok := s.lastSeen.Get(userID)
	s.lastSeen.Add(userID, now)
	switch {
	case !ok:
		return GreetFirst
	case now.Sub(last) > s.greetGap:
		return GreetAgain
	default:
		return GreetNone
	}
}

// Duplicate reports whether messageID was already handled and records it.
// Empty ids are never duplicates.
func (s *Store) Duplicate(messageID string) bool {
	if messageID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.messages.Contains(messageID) {
		return true
	}
	s.messages.Add(messageID, struct{}{})
	return false
}

// SetPending stores a clarification for userID, replacing any earlier one.
func (s *Store) SetPending(userID string, p Pending) {
	s.pending.Add(userID, p)
}

// PopPending returns and clears the clarification for userID.
func (s *Store) PopPending(userID string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending.Get(userID)
	if ok {
		s.pending.Remove(userID)
	}
	return p, ok
}

// HasPending reports whether userID owes an answer to a clarification.
func (s *Store) HasPending(userID string) bool {
	return s.pending.Contains(userID)
}

// Forget drops everything known about userID.
func (s *Store) Forget(userID string) {
	s.lastSeen.Remove(userID)
	s.pending.Remove(userID)
}

// Len returns how many users are currently tracked.
func (s *Store) Len() int {
	return s.lastSeen.Len()
}

// Package store owns every per-user record: tasks, reminders, moods and
// interaction history, plus the due-sweep that hands elapsed reminders to
// the delivery layer.
//
// Each mutating call is one read-modify-write cycle run inside a database
// transaction while holding a lock keyed by user id, so concurrent callers
// never lose updates. DueSweep takes an exclusive lock and cannot interleave
// with any user mutation.
//
// Positions passed to the *ByIndex and *ByPendingIndex methods are 1-based
// and recomputed from current state on every call. A number shown to a user
// stops being meaningful as soon as the underlying list changes.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/timeparse"
	"gorm.io/gorm"
)

// Store is the persistence facade used by the bot and the tool surfaces.
type Store struct {
	db       *gorm.DB
	resolver *timeparse.Resolver
	clock    func() time.Time
	loc      *time.Location

	sweepMu sync.RWMutex
	locks   *userLocks
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithLocation sets the timezone used to interpret clock times and "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithResolver shares an existing time resolver.
func WithResolver(r *timeparse.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// New wraps an already migrated database.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: time.Now,
		loc:   time.Local,
		locks: &userLocks{locks: make(map[string]*userLock)},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = timeparse.New()
	}
	return s
}

// Now returns the store clock in the configured location.
func (s *Store) Now() time.Time {
	return s.clock().In(s.loc)
}

// Location returns the configured timezone.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Resolver returns the time resolver used for reminder times.
func (s *Store) Resolver() *timeparse.Resolver {
	return s.resolver
}

// mutate runs fn in a transaction after making sure the user row exists.
func (s *Store) mutate(ctx context.Context, userID string, fn func(tx *gorm.DB) error) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}

	s.sweepMu.RLock()
	defer s.sweepMu.RUnlock()
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}

func ensureUser(tx *gorm.DB, userID string) error {
	var u model.User
	return tx.Where(&model.User{ID: userID}).
		Attrs(model.User{SchemaVersion: model.SchemaVersion}).
		FirstOrCreate(&u).Error
}

func appendHistory(tx *gorm.DB, userID, kind, raw string, at time.Time) error {
	return tx.Create(&model.HistoryEntry{
		UserID:    userID,
		Kind:      kind,
		Raw:       raw,
		CreatedAt: at.UTC(),
	}).Error
}

type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until userID is free and returns the matching unlock. Entries
// are dropped once nobody holds or waits for them.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

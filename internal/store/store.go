// Package store holds the authoritative pending, approved and recently failed
// collections of one console session.
//
// Writes are serialized behind a single mutex and applied to a private draft;
// a successful batch publishes a new immutable Snapshot, so readers never
// take the lock.
package store

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayo6706/payment-console/internal/identity"
)

var (
	// ErrClosed is returned for writes after Close.
	ErrClosed = errors.New("store closed")
	// ErrStaleGeneration is returned when a write carries a generation token
	// from before the last Close.
	ErrStaleGeneration = errors.New("stale store generation")
)

// generations is shared by every store in the process, so a generation token
// names one store instance and never repeats after Close or across sessions.
var generations atomic.Uint64

func nextGeneration() uint64 {
	return generations.Add(1)
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	resolver identity.Resolver
	current  atomic.Pointer[Snapshot]
	closed   bool
	clock    func() time.Time
	onCommit []func(*Snapshot)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock stamped on committed snapshots.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCommitHook registers fn to run, under the write lock, after every commit.
func WithCommitHook(fn func(*Snapshot)) Option {
	return func(s *Store) {
		if fn != nil {
			s.onCommit = append(s.onCommit, fn)
		}
	}
}

// New creates an empty store using resolver for identity decisions.
func New(resolver identity.Resolver, opts ...Option) *Store {
	if resolver == nil {
		resolver = identity.NewAnyFieldResolver()
	}
	s := &Store{resolver: resolver, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(emptySnapshot(nextGeneration()))
	return s
}

// Resolver returns the identity strategy the store was built with.
func (s *Store) Resolver() identity.Resolver {
	return s.resolver
}

// Snapshot returns the latest committed view without locking.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Generation is the token writers must present to RunBatch. It is unique
// across every store in the process.
func (s *Store) Generation() uint64 {
	return s.current.Load().Generation
}

// RunBatch applies fn atomically. No other write interleaves with fn, and its
// changes become visible only if it returns nil. Writes whose generation does
// not match the store's are rejected with ErrStaleGeneration.
func (s *Store) RunBatch(generation uint64, fn func(b *Batch) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	cur := s.current.Load()
	if generation != cur.Generation {
		return nil, ErrStaleGeneration
	}

	b := &Batch{draft: cur.clone(), resolver: s.resolver}
	if err := fn(b); err != nil {
		return nil, err
	}
	if !b.dirty {
		return cur, nil
	}

	next := b.draft
	next.Version = cur.Version + 1
	next.UpdatedAt = s.clock()
	s.current.Store(next)
	for _, hook := range s.onCommit {
		hook(next)
	}
	return next, nil
}

// Apply is RunBatch against the current generation.
func (s *Store) Apply(fn func(b *Batch) error) (*Snapshot, error) {
	return s.RunBatch(s.Generation(), fn)
}

// Close rejects all further writes and invalidates outstanding generation tokens.
// The last snapshot stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	cur := s.current.Load().clone()
	cur.Generation = nextGeneration()
	s.current.Store(cur)
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/cryptofolio/common"
	"github.com/etnz/cryptofolio/storage"
)

// Key is the storage key of the persisted series.
const Key = "portfolio_history.json"

// Store is the durable, pruned, valuation history.
//
// Writes are serialized: each Append reads, extends, prunes and writes the whole
// series under the store lock. Reads do not take the lock, they rely on the
// backend writing documents atomically.
type Store struct {
	backend storage.Backend
	logger  *common.Logger
	now     func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store persisted in backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time of the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// read returns the persisted series, empty if it was never written.
func (s *Store) read(ctx context.Context) ([]Entry, error) {
	data, err := s.backend.Read(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read history: %w", err)
	}
	return Decode(data)
}

func (s *Store) write(ctx context.Context, entries []Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return fmt.Errorf("cannot encode history: %w", err)
	}
	if err := s.backend.Write(ctx, Key, data); err != nil {
		return fmt.Errorf("cannot write history: %w", err)
	}
	return nil
}

// Append adds e to the series, prunes it and persists it before returning.
//
// It returns the series as it was before the append, so that a caller whose
// own write fails afterwards can put it back with Replace. On error nothing
// has been persisted.
func (s *Store) Append(ctx context.Context, e Entry) (previous []Entry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err = s.read(ctx)
	if err != nil {
		return nil, err
	}
	next := Prune(append(previous[:len(previous):len(previous)], e), s.now())
	if err := s.write(ctx, next); err != nil {
		return nil, err
	}
	s.logger.Debug().
		Time("timestamp", e.Timestamp).
		Float64("value", e.Value).
		Int("entries", len(next)).
		Msg("history appended")
	return previous, nil
}

// Replace persists entries as the whole series, as is.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, entries)
}

// Query returns the persisted series, newest first. When days is positive only
// the entries of the last 'days' days are returned.
func (s *Store) Query(ctx context.Context, days int) ([]Entry, error) {
	entries, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if days > 0 {
		entries = Since(entries, s.now().Add(-time.Duration(days)*24*time.Hour))
	}
	return entries, nil
}

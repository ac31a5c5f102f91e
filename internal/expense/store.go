// Package expense owns the expense record sequence and its persistence.
//
// A Store is the single source of truth for records. Every mutation rewrites
// the full serialized sequence to the key-value backend before returning, then
// notifies subscribed observers.
package expense

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"iexpense/internal/core"
	"iexpense/internal/kv"
	"iexpense/internal/log"
)

// DefaultKey is the storage key used when none is given.
const DefaultKey = "Items"

// ErrPersist marks a failed write. The mutation itself was applied in memory.
var ErrPersist = errors.New("persist records")

type Store struct {
	mu      sync.RWMutex
	backend kv.Store
	key     string
	records []core.ExpenseRecord
	logger  *log.Logger

	obsMu     sync.Mutex
	observers []subscription
	nextObs   int
}

type subscription struct {
	id int
	fn Observer
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.WithComponent(log.ComponentStore)
		}
	}
}

// WithObserver subscribes fn for the lifetime of the store.
func WithObserver(fn Observer) Option {
	return func(s *Store) {
		s.Subscribe(fn)
	}
}

// New builds a store over backend and loads whatever is persisted under key.
// An empty key means DefaultKey.
func New(ctx context.Context, backend kv.Store, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		backend: backend,
		key:     key,
		logger:  log.Default().WithComponent(log.ComponentStore),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.records = load(ctx, backend, key, s.logger)
	return s
}

// Load reads the sequence persisted under key. Missing, unreadable and
// malformed data all yield an empty sequence.
func Load(ctx context.Context, backend kv.Store, key string) []core.ExpenseRecord {
	return load(ctx, backend, key, log.Default().WithComponent(log.ComponentStore))
}

func load(ctx context.Context, backend kv.Store, key string, logger *log.Logger) []core.ExpenseRecord {
	data, err := backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		logger.DebugContext(ctx, "No persisted records", log.FieldStoreKey, key)
		return []core.ExpenseRecord{}
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to read persisted records, starting empty",
			log.FieldStoreKey, key, log.FieldError, err)
		return []core.ExpenseRecord{}
	}

	records, err := Decode(data)
	if err != nil {
		logger.WarnContext(ctx, "Discarding malformed persisted records",
			log.FieldStoreKey, key, log.FieldBytes, len(data), log.FieldError, err)
		return []core.ExpenseRecord{}
	}

	logger.InfoContext(ctx, "Loaded persisted records", log.FieldStoreKey, key, log.FieldCount, len(records))
	return records
}

// Key returns the storage key the store writes to.
func (s *Store) Key() string {
	return s.key
}

// Add appends r, persists, and notifies observers. No validation or
// deduplication happens here. A non-nil error wraps ErrPersist.
func (s *Store) Add(ctx context.Context, r core.ExpenseRecord) error {
	s.mu.Lock()
	s.records = append(s.records, r)
	count := len(s.records)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Record added",
		log.NewFields().
			WithRecord(r.ID.String(), r.Name, string(r.Category), r.Amount.String()).
			WithOperation(log.OpAdd).
			ToSlice()...)

	s.notify(Event{
		Kind:       EventAdded,
		Records:    []core.ExpenseRecord{r},
		Count:      count,
		PersistErr: err,
	})
	return err
}

// Remove deletes the records at the given positions of the current sequence.
// Order and duplicates do not matter; out-of-range positions are ignored.
func (s *Store) Remove(ctx context.Context, indices ...int) error {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}
	return s.removeWhere(ctx, func(i int, _ core.ExpenseRecord) bool {
		_, ok := drop[i]
		return ok
	})
}

// RemoveIDs deletes the records with the given ids. Unknown ids are ignored.
func (s *Store) RemoveIDs(ctx context.Context, ids ...uuid.UUID) error {
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.removeWhere(ctx, func(_ int, r core.ExpenseRecord) bool {
		_, ok := drop[r.ID]
		return ok
	})
}

func (s *Store) removeWhere(ctx context.Context, match func(int, core.ExpenseRecord) bool) error {
	s.mu.Lock()
	kept := make([]core.ExpenseRecord, 0, len(s.records))
	var removed []core.ExpenseRecord
	for i, r := range s.records {
		if match(i, r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	count := len(kept)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Records removed",
		log.FieldOperation, log.OpRemove,
		"removed", len(removed),
		log.FieldCount, count)

	s.notify(Event{
		Kind:       EventRemoved,
		Records:    removed,
		Count:      count,
		PersistErr: err,
	})
	return err
}

// persistLocked writes the full sequence under the key. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := Encode(s.records)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist records, memory and storage diverge",
			log.FieldOperation, log.OpPersist,
			log.FieldStoreKey, s.key,
			log.FieldError, err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.logger.DebugContext(ctx, "Records persisted",
		log.FieldStoreKey, s.key, log.FieldCount, len(s.records), log.FieldBytes, len(data))
	return nil
}

// Records returns a copy of the full sequence in insertion order.
func (s *Store) Records() []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ExpenseRecord{}, s.records...)
}

// CategoryView returns the records of one category, preserving order.
func (s *Store) CategoryView(category core.Category) []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ExpenseRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it. Observers run on the mutating goroutine after the
// store lock is released.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, sub := range s.observers {
				if sub.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(ev Event) {
	s.obsMu.Lock()
	subs := append([]subscription(nil), s.observers...)
	s.obsMu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

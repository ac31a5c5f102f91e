package memory

import (
	"context"
	"sync"

	"iexpense/internal/kv"
)

// Store keeps values in process memory. It is lost when the process exits.
type Store struct {
	mu       sync.Mutex
	items    map[string][]byte
	writeErr error
}

func New() *Store {
	return &Store{items: map[string][]byte{}}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

// FailWrites makes every following Set return err. A nil err restores writes.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

package memory

import (
	"context"
	"sync"

	"github.com/archivault/connect-widget/storage"
)

// Store is a threadsafe in-memory key-value store implementing both
// storage.SessionStore and storage.LocalStore. A Store can be shared between
// several token stores to model co-located widget instances sharing one host
// session (writes are last-write-wins, like the real thing).
type Store struct {
	mu     sync.RWMutex
	values map[string]string

	// unavailable simulates a host session store the platform has not
	// initialized; every operation returns storage.ErrUnavailable.
	unavailable bool
}

// Compile-time interface checks
var (
	_ storage.SessionStore = (*Store)(nil)
	_ storage.LocalStore   = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// NewUnavailable creates a store whose every operation fails with
// storage.ErrUnavailable. Used to exercise degraded-mode fallback.
func NewUnavailable() *Store {
	return &Store{values: make(map[string]string), unavailable: true}
}

// Get retrieves a value, or "" if absent.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return "", storage.ErrUnavailable
	}
	return s.values[key], nil
}

// Set writes a value.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return storage.ErrUnavailable
	}
	s.values[key] = value
	return nil
}

// Delete removes a value. Deleting an absent key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return storage.ErrUnavailable
	}
	delete(s.values, key)
	return nil
}

// Len reports the number of stored keys. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// SetAvailable toggles the unavailable flag, simulating a host platform that
// initializes (or tears down) its session store mid-session.
func (s *Store) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = !available
}

package progress

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnauthenticated is returned by mutations made with no signed-in user.
	ErrUnauthenticated = errors.New("no signed-in user")
	// ErrPersist is returned when the store could not be read or written and
	// the engine is configured to fail rather than continue.
	ErrPersist = errors.New("progress not persisted")
)

// Store loads and replaces a user's whole completion mapping.
type Store interface {
	// Load returns the user's mapping. A user with no stored progress gets an
	// empty mapping and no error.
	Load(ctx context.Context, userID string) (Completion, error)
	// ReplaceAll persists c as the user's entire completion state.
	ReplaceAll(ctx context.Context, userID string, c Completion) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]Completion
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Completion)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (Completion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.users[userID]
	if !ok {
		return Completion{}, nil
	}
	return c.Clone(), nil
}

func (s *MemoryStore) ReplaceAll(_ context.Context, userID string, c Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = c.Clone()
	return nil
}

package account

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*User
	byUsername map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*User),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeUsername(u.Username)
	if _, taken := s.byUsername[key]; taken {
		return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
	}
	if _, exists := s.byID[u.ID]; exists {
		return fmt.Errorf("create user %s: id exists", u.ID)
	}
	s.byID[u.ID] = u.Clone()
	s.byUsername[key] = u.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	oldKey, newKey := NormalizeUsername(old.Username), NormalizeUsername(u.Username)
	if oldKey != newKey {
		if _, taken := s.byUsername[newKey]; taken {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
		delete(s.byUsername, oldKey)
		s.byUsername[newKey] = u.ID
	}
	s.byID[u.ID] = u.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u.Clone())
	}
	sortUsers(out)
	return out, nil
}

func sortUsers(users []*User) {
	slices.SortFunc(users, func(a, b *User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/p-n-ai/academy/internal/progress"
)

// FileStore keeps all users in one JSON file, rewritten atomically on every
// change. Suitable for a single server process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore stores users in <dataDir>/users.json.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, "users.json")}, nil
}

func (s *FileStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return err
	}
	key := NormalizeUsername(u.Username)
	for _, existing := range users {
		if NormalizeUsername(existing.Username) == key {
			return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
		}
	}
	return s.write(append(users, u))
}

func (s *FileStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
}

func (s *FileStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	key := NormalizeUsername(username)
	for _, u := range users {
		if NormalizeUsername(u.Username) == key {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *FileStore) Save(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return err
	}
	idx := -1
	key := NormalizeUsername(u.Username)
	for i, existing := range users {
		if existing.ID == u.ID {
			idx = i
		} else if NormalizeUsername(existing.Username) == key {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
	}
	if idx < 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	users[idx] = u
	return s.write(users)
}

func (s *FileStore) List(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

// read must be called with s.mu held. A missing file is an empty store.
func (s *FileStore) read() ([]*User, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var users []*User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decoding users file: %w", err)
	}
	for _, u := range users {
		if u.Progress == nil {
			u.Progress = progress.Completion{}
		}
	}
	return users, nil
}

// write must be called with s.mu held.
func (s *FileStore) write(users []*User) error {
	if users == nil {
		users = []*User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing users file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing users file: %w", err)
	}
	return nil
}

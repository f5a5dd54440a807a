package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/academy/internal/progress"
)

const (
	minPasswordLen = 4
	maxUsernameLen = 64
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Store      Store
	BcryptCost int
	Now        func() time.Time
}

// Service registers and authenticates users.
type Service struct {
	store Store
	cost  int
	now   func() time.Time
}

// NewService creates a Service. Zero fields take defaults.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: cfg.Store, cost: cfg.BcryptCost, now: cfg.Now}
}

// Store returns the underlying account store.
func (s *Service) Store() Store { return s.store }

// Register creates a user with a bcrypt password hash and empty progress.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := checkCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
		Progress:     progress.Completion{},
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a username and password. Records imported with a
// plain-text password are upgraded to a bcrypt hash on first success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !isBcryptHash(u.PasswordHash) {
		if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(password)) != 1 {
			return nil, ErrInvalidCredentials
		}
		if err := s.setPassword(ctx, u, password); err != nil {
			slog.Warn("upgrading legacy password failed", "user_id", u.ID, "error", err)
		} else {
			slog.Info("legacy password upgraded", "user_id", u.ID)
		}
		return u, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.Authenticate(ctx, u.Username, current); err != nil {
		return err
	}
	if utf8.RuneCountInString(next) < minPasswordLen {
		return fmt.Errorf("password shorter than %d characters: %w", minPasswordLen, ErrInvalidInput)
	}
	// Authenticate may have rewritten the record; reload before saving.
	u, err = s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u, next)
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) setPassword(ctx context.Context, u *User, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.store.Save(ctx, u)
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func checkCredentials(username, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("username is required: %w", ErrInvalidInput)
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return fmt.Errorf("username longer than %d characters: %w", maxUsernameLen, ErrInvalidInput)
	case strings.TrimSpace(password) == "":
		return fmt.Errorf("password is required: %w", ErrInvalidInput)
	case utf8.RuneCountInString(password) < minPasswordLen:
		return fmt.Errorf("password shorter than %d characters: %w", minPasswordLen, ErrInvalidInput)
	}
	return nil
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

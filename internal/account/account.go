// Package account stores user records. Each record owns the user's whole
// progress mapping; back ends always read and write a record in one piece.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/academy/internal/progress"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a username is already registered,
	// compared case-insensitively.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidInput is returned for missing or malformed registration data.
	ErrInvalidInput = errors.New("invalid input")
)

// User is an account with its progress.
type User struct {
	ID           string              `json:"id"`
	Username     string              `json:"username"`
	PasswordHash string              `json:"password"`
	CreatedAt    time.Time           `json:"createdAt"`
	Progress     progress.Completion `json:"progress"`
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	out := *u
	out.Progress = u.Progress.Clone()
	return &out
}

// Store persists users.
type Store interface {
	// Create inserts a new user. It fails with ErrUsernameTaken when the
	// normalised username exists.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Save replaces the whole record of an existing user.
	Save(ctx context.Context, u *User) error
	List(ctx context.Context) ([]*User, error)
}

// NormalizeUsername is the form usernames are compared in.
func NormalizeUsername(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

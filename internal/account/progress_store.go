package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/academy/internal/progress"
)

// ProgressStore reads and writes the progress held inside user records. It
// implements progress.Store over any account Store.
type ProgressStore struct {
	users Store
}

// NewProgressStore adapts users to progress.Store.
func NewProgressStore(users Store) *ProgressStore {
	return &ProgressStore{users: users}
}

// Load returns an empty mapping for a user that does not exist yet.
func (p *ProgressStore) Load(ctx context.Context, userID string) (progress.Completion, error) {
	u, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return progress.Completion{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading progress of %s: %w", userID, err)
	}
	if u.Progress == nil {
		return progress.Completion{}, nil
	}
	return u.Progress, nil
}

// ReplaceAll rewrites the user's record with c as its progress.
func (p *ProgressStore) ReplaceAll(ctx context.Context, userID string, c progress.Completion) error {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("saving progress of %s: %w", userID, err)
	}
	u.Progress = c.Clone()
	if err := p.users.Save(ctx, u); err != nil {
		return fmt.Errorf("saving progress of %s: %w", userID, err)
	}
	return nil
}

// Package grading checks quiz, task and exercise answers on the server and
// tracks which items of a unit each user has answered correctly. Once every
// quiz (or task) of a unit has been passed the matching progress marker is
// written.
package grading

import (
	"context"
	"sync"
	"time"

	"github.com/p-n-ai/academy/internal/progress"
)

const defaultTTL = 24 * time.Hour

// ItemKind separates quiz and task attempts within one unit.
type ItemKind string

const (
	KindQuiz ItemKind = "quiz"
	KindTask ItemKind = "task"
)

// Unit addresses a lesson, or a sub-lesson when SublessonID is set.
type Unit struct {
	CourseID    string `json:"courseId"`
	LessonID    string `json:"lessonId"`
	SublessonID string `json:"sublessonId,omitempty"`
}

// String renders the unit in the colon form used for progress keys.
func (u Unit) String() string {
	return progress.UnitKey(u.CourseID, u.LessonID, u.SublessonID).String()
}

// AttemptStore remembers the items a user answered correctly at least once.
// Entries expire after the store's TTL of inactivity.
type AttemptStore interface {
	Record(ctx context.Context, userID string, unit Unit, kind ItemKind, itemID string) error
	Passed(ctx context.Context, userID string, unit Unit, kind ItemKind) (map[string]bool, error)
	// Clear forgets quiz and task attempts of the unit.
	Clear(ctx context.Context, userID string, unit Unit) error
}

type attemptKey struct {
	userID string
	unit   Unit
	kind   ItemKind
}

type attemptSet struct {
	items   map[string]bool
	expires time.Time
}

// MemoryAttemptStore is an in-process AttemptStore.
type MemoryAttemptStore struct {
	mu   sync.Mutex
	sets map[attemptKey]*attemptSet
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryAttemptStore creates a store whose entries live for ttl after the
// last recorded attempt.
func NewMemoryAttemptStore(ttl time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		sets: make(map[attemptKey]*attemptSet),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryAttemptStore) Record(_ context.Context, userID string, unit Unit, kind ItemKind, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := attemptKey{userID: userID, unit: unit, kind: kind}
	set := s.live(k)
	if set == nil {
		set = &attemptSet{items: make(map[string]bool)}
		s.sets[k] = set
	}
	set.items[itemID] = true
	set.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryAttemptStore) Passed(_ context.Context, userID string, unit Unit, kind ItemKind) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool)
	if set := s.live(attemptKey{userID: userID, unit: unit, kind: kind}); set != nil {
		for id := range set.items {
			out[id] = true
		}
	}
	return out, nil
}

func (s *MemoryAttemptStore) Clear(_ context.Context, userID string, unit Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, attemptKey{userID: userID, unit: unit, kind: KindQuiz})
	delete(s.sets, attemptKey{userID: userID, unit: unit, kind: KindTask})
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryAttemptStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, set := range s.sets {
		if !now.Before(set.expires) {
			delete(s.sets, k)
			n++
		}
	}
	return n
}

// live must be called with s.mu held.
func (s *MemoryAttemptStore) live(k attemptKey) *attemptSet {
	set, ok := s.sets[k]
	if !ok {
		return nil
	}
	if !s.now().Before(set.expires) {
		delete(s.sets, k)
		return nil
	}
	return set
}

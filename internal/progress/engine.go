// Package progress records lesson, sub-lesson, quiz-set, task-set and
// exercise completion for signed-in users and derives completion and
// statistics from it.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/content"
)

// PersistPolicy decides what a mutation does when the store write fails.
type PersistPolicy int

const (
	// PersistLogAndContinue logs the failure and keeps the new in-memory
	// state. Store and memory may diverge until the next successful write.
	PersistLogAndContinue PersistPolicy = iota
	// PersistFail restores the previous state and returns ErrPersist.
	PersistFail
)

// ParsePersistPolicy maps "log" and "fail" to a policy.
func ParsePersistPolicy(s string) (PersistPolicy, error) {
	switch s {
	case "", "log":
		return PersistLogAndContinue, nil
	case "fail":
		return PersistFail, nil
	}
	return 0, fmt.Errorf("unknown persist policy %q", s)
}

func (p PersistPolicy) String() string {
	if p == PersistFail {
		return "fail"
	}
	return "log"
}

// Observer is told about every mutation outcome. Used for metrics.
type Observer interface {
	MutationApplied(op EventType)
	PersistFailed(op EventType)
}

type nopObserver struct{}

func (nopObserver) MutationApplied(EventType) {}
func (nopObserver) PersistFailed(EventType)   {}

// EngineConfig holds dependencies for the progress engine.
type EngineConfig struct {
	Store       Store
	CurrentUser func(ctx context.Context) (string, bool) // default auth.UserID
	Events      EventLogger
	Observer    Observer
	Policy      PersistPolicy
	Now         func() time.Time
}

// Engine owns the in-memory completion state of signed-in users. Every
// mutation of a user is serialised and ends with exactly one
// Store.ReplaceAll. Two engines writing the same user are not coordinated:
// the last ReplaceAll wins.
type Engine struct {
	store       Store
	currentUser func(ctx context.Context) (string, bool)
	events      EventLogger
	observer    Observer
	policy      PersistPolicy
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu         sync.Mutex
	loaded     bool
	completion Completion

	lastUsed time.Time // guarded by Engine.mu
}

// NewEngine creates a progress engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	currentUser := cfg.CurrentUser
	if currentUser == nil {
		currentUser = auth.UserID
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:       store,
		currentUser: currentUser,
		events:      events,
		observer:    observer,
		policy:      cfg.Policy,
		now:         now,
		sessions:    make(map[string]*session),
	}
}

// Load reads the signed-in user's mapping from the store, replacing any
// cached state. Call it on sign-in. It fails soft: with no user, or when the
// store cannot be read, the user simply starts empty.
func (e *Engine) Load(ctx context.Context) Completion {
	userID, ok := e.currentUser(ctx)
	if !ok {
		return Completion{}
	}
	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	if err := e.ensureLoaded(ctx, userID, s); err != nil {
		slog.Warn("progress load failed", "user_id", userID, "error", err)
		return Completion{}
	}
	return s.completion.Clone()
}

// Forget drops the cached state of a user. Call it on sign-out.
func (e *Engine) Forget(userID string) {
	e.mu.Lock()
	delete(e.sessions, userID)
	e.mu.Unlock()
}

// EvictIdle drops the cached state of users not seen for maxIdle and returns
// how many were dropped. Sessions in use are kept. An evicted user is
// reloaded from the store on their next request.
func (e *Engine) EvictIdle(maxIdle time.Duration) int {
	cutoff := e.now().Add(-maxIdle)
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for userID, s := range e.sessions {
		if s.lastUsed.After(cutoff) {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		delete(e.sessions, userID)
		s.mu.Unlock()
		n++
	}
	return n
}

// Snapshot returns a copy of the signed-in user's mapping.
func (e *Engine) Snapshot(ctx context.Context) Completion {
	var out Completion
	e.view(ctx, func(c Completion) { out = c.Clone() })
	return out
}

// MarkUnitComplete records a lesson, or a sub-lesson when sublessonID is
// set. Marking again refreshes the timestamp.
func (e *Engine) MarkUnitComplete(ctx context.Context, courseID, lessonID, sublessonID string) error {
	k := UnitKey(courseID, lessonID, sublessonID)
	return e.mutate(ctx, EventUnitCompleted, func(c Completion, now time.Time) Event {
		c.mark(k, now)
		return Event{Key: k}
	})
}

// MarkAllQuizzesComplete records that every quiz of the unit has been
// answered correctly. The engine does not grade; callers decide when.
func (e *Engine) MarkAllQuizzesComplete(ctx context.Context, courseID, lessonID, sublessonID string) error {
	k := QuizzesKey(courseID, lessonID, sublessonID)
	return e.mutate(ctx, EventQuizzesCompleted, func(c Completion, now time.Time) Event {
		c.mark(k, now)
		return Event{Key: k}
	})
}

// MarkAllTasksComplete records that every task of the unit has been
// answered correctly.
func (e *Engine) MarkAllTasksComplete(ctx context.Context, courseID, lessonID, sublessonID string) error {
	k := TasksKey(courseID, lessonID, sublessonID)
	return e.mutate(ctx, EventTasksCompleted, func(c Completion, now time.Time) Event {
		c.mark(k, now)
		return Event{Key: k}
	})
}

// ResetUnit deletes a unit's completion and its quiz and task markers.
// Without a sub-lesson id the whole lesson is reset, including every
// sub-lesson under it. Resetting a unit with no records is a no-op that
// still persists.
func (e *Engine) ResetUnit(ctx context.Context, courseID, lessonID, sublessonID string) error {
	k := UnitKey(courseID, lessonID, sublessonID)
	return e.mutate(ctx, EventUnitReset, func(c Completion, _ time.Time) Event {
		return Event{Key: k, Removed: c.resetUnit(courseID, lessonID, sublessonID)}
	})
}

// MarkExerciseComplete records a solved trainer exercise.
func (e *Engine) MarkExerciseComplete(ctx context.Context, exerciseID string) error {
	k := ExerciseKey(exerciseID)
	return e.mutate(ctx, EventExerciseCompleted, func(c Completion, now time.Time) Event {
		c.mark(k, now)
		return Event{Key: k}
	})
}

// IsUnitComplete reports whether the exact unit is recorded for the
// signed-in user.
func (e *Engine) IsUnitComplete(ctx context.Context, courseID, lessonID, sublessonID string) bool {
	var ok bool
	e.view(ctx, func(c Completion) { ok = c.IsUnitComplete(courseID, lessonID, sublessonID) })
	return ok
}

// IsLessonFullyComplete applies the composite lesson rule.
func (e *Engine) IsLessonFullyComplete(ctx context.Context, courseID string, lesson content.Lesson) bool {
	var ok bool
	e.view(ctx, func(c Completion) { ok = c.IsLessonFullyComplete(courseID, lesson) })
	return ok
}

// CourseStats aggregates a course for the signed-in user.
func (e *Engine) CourseStats(ctx context.Context, course content.Course) CourseStats {
	var st CourseStats
	e.view(ctx, func(c Completion) { st = c.CourseStats(course) })
	return st
}

// IsExerciseComplete reports whether the exercise is recorded.
func (e *Engine) IsExerciseComplete(ctx context.Context, exerciseID string) bool {
	var ok bool
	e.view(ctx, func(c Completion) { ok = c.IsExerciseComplete(exerciseID) })
	return ok
}

// ExerciseStats counts completed exercises among the given ones.
func (e *Engine) ExerciseStats(ctx context.Context, exercises []content.Exercise) ExerciseStats {
	var st ExerciseStats
	e.view(ctx, func(c Completion) { st = c.ExerciseStats(exercises) })
	return st
}

// CourseExerciseStats counts completed exercises of one course; an empty
// courseID selects exercises without a course.
func (e *Engine) CourseExerciseStats(ctx context.Context, exercises []content.Exercise, courseID string) ExerciseStats {
	var st ExerciseStats
	e.view(ctx, func(c Completion) { st = c.CourseExerciseStats(exercises, courseID) })
	return st
}

// Activity summarises the signed-in user's records under a course.
func (e *Engine) Activity(ctx context.Context, courseID string) Activity {
	var a Activity
	e.view(ctx, func(c Completion) { a = c.Activity(courseID) })
	return a
}

func (e *Engine) session(userID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok {
		s = &session{}
		e.sessions[userID] = s
	}
	s.lastUsed = e.now()
	return s
}

// ensureLoaded must be called with s.mu held.
func (e *Engine) ensureLoaded(ctx context.Context, userID string, s *session) error {
	if s.loaded {
		return nil
	}
	c, err := e.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	if c == nil {
		c = Completion{}
	}
	s.completion = c
	s.loaded = true
	return nil
}

// view runs fn against the signed-in user's mapping. Anonymous users and
// unreadable stores read as empty.
func (e *Engine) view(ctx context.Context, fn func(Completion)) {
	userID, ok := e.currentUser(ctx)
	if !ok {
		fn(Completion{})
		return
	}
	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := e.ensureLoaded(ctx, userID, s); err != nil {
		slog.Warn("progress load failed, reading as empty", "user_id", userID, "error", err)
		fn(Completion{})
		return
	}
	fn(s.completion)
}

// mutate applies fn to a copy of the user's mapping, swaps it in and writes
// it through. A mapping that could not be loaded is never written, so a
// transient read failure cannot wipe stored progress.
func (e *Engine) mutate(ctx context.Context, op EventType, fn func(c Completion, now time.Time) Event) error {
	userID, ok := e.currentUser(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	s := e.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := e.ensureLoaded(ctx, userID, s); err != nil {
		e.observer.PersistFailed(op)
		return fmt.Errorf("%s: loading progress: %w: %w", op, ErrPersist, err)
	}

	now := e.now()
	prev := s.completion
	next := prev.Clone()
	ev := fn(next, now)
	s.completion = next

	if err := e.store.ReplaceAll(ctx, userID, next); err != nil {
		e.observer.PersistFailed(op)
		if e.policy == PersistFail {
			s.completion = prev
			return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
		}
		slog.Error("progress persist failed, keeping in-memory state",
			"user_id", userID,
			"op", op,
			"error", err,
		)
	}
	e.observer.MutationApplied(op)

	ev.UserID = userID
	ev.Type = op
	ev.CreatedAt = now
	if err := e.events.LogEvent(ev); err != nil {
		slog.Warn("progress event not logged", "op", op, "user_id", userID, "error", err)
	}
	return nil
}

package progress_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/progress"
)

// countingStore wraps a MemoryStore, counts writes and can be told to fail.
type countingStore struct {
	*progress.MemoryStore
	mu        sync.Mutex
	writes    int
	failWrite error
	failLoad  error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: progress.NewMemoryStore()}
}

func (s *countingStore) Load(ctx context.Context, userID string) (progress.Completion, error) {
	s.mu.Lock()
	err := s.failLoad
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.Load(ctx, userID)
}

func (s *countingStore) ReplaceAll(ctx context.Context, userID string, c progress.Completion) error {
	s.mu.Lock()
	s.writes++
	err := s.failWrite
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.ReplaceAll(ctx, userID, c)
}

func signedIn(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID, Username: userID})
}

var py101 = content.Course{ID: "py-101", Title: "Python", Modules: []content.Module{{
	ID: "m1", Title: "Basics", Lessons: []content.Lesson{{
		ID: "l1", Title: "Intro", Sublessons: []content.Sublesson{
			{ID: "s1", Title: "One"},
			{ID: "s2", Title: "Two"},
		},
	}},
}}}

func TestEngine_LessonWithSublessonsScenario(t *testing.T) {
	store := newCountingStore()
	e := progress.NewEngine(progress.EngineConfig{Store: store})
	ctx := signedIn("u1")
	l1 := py101.Modules[0].Lessons[0]

	assert.False(t, e.IsLessonFullyComplete(ctx, "py-101", l1))

	require.NoError(t, e.MarkUnitComplete(ctx, "py-101", "l1", "s1"))
	assert.False(t, e.IsLessonFullyComplete(ctx, "py-101", l1))

	require.NoError(t, e.MarkUnitComplete(ctx, "py-101", "l1", "s2"))
	assert.True(t, e.IsLessonFullyComplete(ctx, "py-101", l1))

	require.NoError(t, e.ResetUnit(ctx, "py-101", "l1", ""))
	assert.False(t, e.IsUnitComplete(ctx, "py-101", "l1", "s1"))
	assert.False(t, e.IsUnitComplete(ctx, "py-101", "l1", "s2"))
	assert.False(t, e.IsLessonFullyComplete(ctx, "py-101", l1))

	assert.Equal(t, 3, store.writes, "one ReplaceAll per mutation")
}

func TestEngine_MarkIsIdempotentAndRefreshesTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	e := progress.NewEngine(progress.EngineConfig{Now: func() time.Time { return now }})
	ctx := signedIn("u1")

	assert.False(t, e.IsUnitComplete(ctx, "py", "l1", ""))
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))
	now = now.Add(time.Hour)
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))

	snap := e.Snapshot(ctx)
	require.Len(t, snap, 1)
	assert.Equal(t, now, snap[progress.LessonKey("py", "l1")].CompletedAt)
}

func TestEngine_ResetSublessonLeavesSiblingsAndLesson(t *testing.T) {
	e := progress.NewEngine(progress.EngineConfig{})
	ctx := signedIn("u1")

	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", "s1"))
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", "s2"))
	require.NoError(t, e.MarkAllQuizzesComplete(ctx, "py", "l1", "s1"))
	require.NoError(t, e.MarkAllTasksComplete(ctx, "py", "l1", "s1"))

	require.NoError(t, e.ResetUnit(ctx, "py", "l1", "s1"))

	snap := e.Snapshot(ctx)
	assert.False(t, snap.Has(progress.SublessonKey("py", "l1", "s1")))
	assert.False(t, snap.Has(progress.QuizzesKey("py", "l1", "s1")))
	assert.False(t, snap.Has(progress.TasksKey("py", "l1", "s1")))
	assert.True(t, snap.Has(progress.SublessonKey("py", "l1", "s2")))
	assert.True(t, snap.Has(progress.LessonKey("py", "l1")))
}

func TestEngine_ResetLessonCascadesToMarkers(t *testing.T) {
	events := progress.NewMemoryEventLogger()
	e := progress.NewEngine(progress.EngineConfig{Events: events})
	ctx := signedIn("u1")

	require.NoError(t, e.MarkAllQuizzesComplete(ctx, "py", "l1", ""))
	require.NoError(t, e.MarkAllTasksComplete(ctx, "py", "l1", "s1"))
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l2", ""))
	require.NoError(t, e.MarkExerciseComplete(ctx, "l1"))

	require.NoError(t, e.ResetUnit(ctx, "py", "l1", ""))

	snap := e.Snapshot(ctx)
	assert.Len(t, snap, 2)
	assert.True(t, snap.Has(progress.LessonKey("py", "l2")))
	assert.True(t, snap.Has(progress.ExerciseKey("l1")))

	evs := events.Events()
	require.Len(t, evs, 5)
	last := evs[4]
	assert.Equal(t, progress.EventUnitReset, last.Type)
	assert.Equal(t, 2, last.Removed)
	assert.Equal(t, "u1", last.UserID)
}

func TestEngine_ResetMissingBranchIsNoOp(t *testing.T) {
	e := progress.NewEngine(progress.EngineConfig{})
	ctx := signedIn("u1")
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))
	require.NoError(t, e.ResetUnit(ctx, "py", "l1", "ghost"))
	assert.True(t, e.IsUnitComplete(ctx, "py", "l1", ""))
}

func TestEngine_UnauthenticatedMutationsFail(t *testing.T) {
	store := newCountingStore()
	e := progress.NewEngine(progress.EngineConfig{Store: store})
	ctx := context.Background()

	calls := map[string]func() error{
		"mark unit": func() error { return e.MarkUnitComplete(ctx, "py", "l1", "") },
		"reset":     func() error { return e.ResetUnit(ctx, "py", "l1", "") },
		"quizzes":   func() error { return e.MarkAllQuizzesComplete(ctx, "py", "l1", "") },
		"tasks":     func() error { return e.MarkAllTasksComplete(ctx, "py", "l1", "") },
		"exercise":  func() error { return e.MarkExerciseComplete(ctx, "ex") },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), progress.ErrUnauthenticated)
		})
	}
	assert.Zero(t, store.writes)
	assert.Empty(t, e.Snapshot(ctx))
	assert.False(t, e.IsUnitComplete(ctx, "py", "l1", ""))
}

func TestEngine_PersistFailureLogAndContinue(t *testing.T) {
	store := newCountingStore()
	store.failWrite = errors.New("disk full")
	e := progress.NewEngine(progress.EngineConfig{Store: store, Policy: progress.PersistLogAndContinue})
	ctx := signedIn("u1")

	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))
	assert.True(t, e.IsUnitComplete(ctx, "py", "l1", ""), "optimistic state kept")

	stored, err := store.MemoryStore.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored, "store and memory diverge")
}

func TestEngine_PersistFailureFailPolicy(t *testing.T) {
	store := newCountingStore()
	e := progress.NewEngine(progress.EngineConfig{Store: store, Policy: progress.PersistFail})
	ctx := signedIn("u1")
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))

	store.failWrite = errors.New("network down")
	err := e.MarkUnitComplete(ctx, "py", "l2", "")
	assert.ErrorIs(t, err, progress.ErrPersist)
	assert.False(t, e.IsUnitComplete(ctx, "py", "l2", ""), "rolled back")
	assert.True(t, e.IsUnitComplete(ctx, "py", "l1", ""))
}

func TestEngine_LoadFailureNeverOverwritesStore(t *testing.T) {
	store := newCountingStore()
	require.NoError(t, store.MemoryStore.ReplaceAll(context.Background(), "u1",
		progress.Completion{progress.LessonKey("py", "old"): {Key: progress.LessonKey("py", "old")}}))
	store.failLoad = errors.New("timeout")

	e := progress.NewEngine(progress.EngineConfig{Store: store})
	ctx := signedIn("u1")

	assert.Empty(t, e.Snapshot(ctx), "reads fail soft")
	assert.ErrorIs(t, e.MarkUnitComplete(ctx, "py", "l1", ""), progress.ErrPersist)
	assert.Zero(t, store.writes)

	store.failLoad = nil
	require.NoError(t, e.MarkUnitComplete(ctx, "py", "l1", ""))
	assert.True(t, e.IsUnitComplete(ctx, "py", "old", ""))
	assert.True(t, e.IsUnitComplete(ctx, "py", "l1", ""))
}

func TestEngine_LoadAndForget(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := signedIn("u1")

	first := progress.NewEngine(progress.EngineConfig{Store: store})
	require.NoError(t, first.MarkExerciseComplete(ctx, "ex-1"))

	second := progress.NewEngine(progress.EngineConfig{Store: store})
	loaded := second.Load(ctx)
	assert.True(t, loaded.IsExerciseComplete("ex-1"))

	require.NoError(t, first.MarkExerciseComplete(ctx, "ex-2"))
	assert.False(t, second.IsExerciseComplete(ctx, "ex-2"), "cached until reload")
	second.Forget("u1")
	assert.True(t, second.IsExerciseComplete(ctx, "ex-2"))
}

func TestEngine_EvictIdle(t *testing.T) {
	store := progress.NewMemoryStore()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := progress.NewEngine(progress.EngineConfig{Store: store, Now: func() time.Time { return now }})
	writer := progress.NewEngine(progress.EngineConfig{Store: store})

	require.NoError(t, e.MarkExerciseComplete(signedIn("idle"), "ex-1"))
	now = now.Add(30 * time.Minute)
	require.NoError(t, e.MarkExerciseComplete(signedIn("busy"), "ex-1"))

	require.NoError(t, writer.MarkExerciseComplete(signedIn("idle"), "ex-2"))
	require.NoError(t, writer.MarkExerciseComplete(signedIn("busy"), "ex-2"))

	now = now.Add(31 * time.Minute)
	assert.Equal(t, 1, e.EvictIdle(time.Hour))
	assert.Equal(t, 0, e.EvictIdle(time.Hour), "already evicted")

	assert.True(t, e.IsExerciseComplete(signedIn("idle"), "ex-2"), "evicted user is reloaded")
	assert.False(t, e.IsExerciseComplete(signedIn("busy"), "ex-2"), "recent user stays cached")
	assert.True(t, e.IsExerciseComplete(signedIn("idle"), "ex-1"))
}

func TestEngine_UsersAreIsolated(t *testing.T) {
	e := progress.NewEngine(progress.EngineConfig{})
	require.NoError(t, e.MarkUnitComplete(signedIn("a"), "py", "l1", ""))
	assert.False(t, e.IsUnitComplete(signedIn("b"), "py", "l1", ""))
}

func TestEngine_StatsAndActivity(t *testing.T) {
	e := progress.NewEngine(progress.EngineConfig{})
	ctx := signedIn("u1")
	exercises := []content.Exercise{{ID: "a", CourseID: "py-101"}, {ID: "b"}}

	require.NoError(t, e.MarkUnitComplete(ctx, "py-101", "l1", "s1"))
	require.NoError(t, e.MarkExerciseComplete(ctx, "b"))

	st := e.CourseStats(ctx, py101)
	assert.Equal(t, progress.Count{Completed: 1, Total: 3}, st.Lessons)
	assert.Equal(t, 33, st.Percentage)

	assert.Equal(t, progress.ExerciseStats{Completed: 1, Total: 2, Percentage: 50}, e.ExerciseStats(ctx, exercises))
	assert.Equal(t, 0, e.CourseExerciseStats(ctx, exercises, "py-101").Completed)
	assert.Equal(t, 1, e.CourseExerciseStats(ctx, exercises, "").Completed)
	assert.Equal(t, 1, e.Activity(ctx, "py-101").CompletedCount)
}

func TestEngine_ConcurrentMutationsSameUser(t *testing.T) {
	store := newCountingStore()
	e := progress.NewEngine(progress.EngineConfig{Store: store})
	ctx := signedIn("u1")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.MarkExerciseComplete(ctx, string(rune('a'+i)))
		}()
	}
	wg.Wait()

	stored, err := store.MemoryStore.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 20)
	assert.Equal(t, 20, store.writes)
}

func TestParsePersistPolicy(t *testing.T) {
	p, err := progress.ParsePersistPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, progress.PersistFail, p)
	assert.Equal(t, "fail", p.String())

	p, err = progress.ParsePersistPolicy("")
	require.NoError(t, err)
	assert.Equal(t, progress.PersistLogAndContinue, p)

	_, err = progress.ParsePersistPolicy("retry")
	assert.Error(t, err)
}

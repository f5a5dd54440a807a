package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/content"
)

// Catalog is the content the grader checks answers against.
type Catalog interface {
	Lesson(courseID, lessonID string) (content.Lesson, error)
	Sublesson(courseID, lessonID, sublessonID string) (content.Sublesson, content.Lesson, error)
	Exercise(id string) (content.Exercise, error)
}

// Marker writes progress markers. *progress.Engine implements it.
type Marker interface {
	MarkAllQuizzesComplete(ctx context.Context, courseID, lessonID, sublessonID string) error
	MarkAllTasksComplete(ctx context.Context, courseID, lessonID, sublessonID string) error
	MarkExerciseComplete(ctx context.Context, exerciseID string) error
	ResetUnit(ctx context.Context, courseID, lessonID, sublessonID string) error
}

// QuizResult is the outcome of one quiz answer.
type QuizResult struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Explanation  string `json:"explanation,omitempty"`
	// AllPassed is set once every quiz of the unit has been answered
	// correctly at least once.
	AllPassed bool `json:"allPassed"`
}

// TaskResult is the outcome of one task answer. Solution is only revealed
// for a correct answer.
type TaskResult struct {
	Correct   bool   `json:"correct"`
	Solution  string `json:"solution,omitempty"`
	AllPassed bool   `json:"allPassed"`
}

// ExerciseResult is the outcome of one exercise answer.
type ExerciseResult struct {
	Correct   bool   `json:"correct"`
	Solution  string `json:"solution,omitempty"`
	Completed bool   `json:"completed"`
}

// Config configures a Grader.
type Config struct {
	Catalog  Catalog
	Marker   Marker
	Attempts AttemptStore
}

// Grader checks answers and drives the all-passed markers.
type Grader struct {
	catalog  Catalog
	marker   Marker
	attempts AttemptStore
}

// New creates a Grader. Attempts defaults to an in-memory store with a
// one-day expiry.
func New(cfg Config) *Grader {
	if cfg.Attempts == nil {
		cfg.Attempts = NewMemoryAttemptStore(defaultTTL)
	}
	return &Grader{catalog: cfg.Catalog, marker: cfg.Marker, attempts: cfg.Attempts}
}

// AnswerQuiz grades choice for the quiz quizID of unit. Anonymous callers
// are graded but nothing is tracked.
func (g *Grader) AnswerQuiz(ctx context.Context, unit Unit, quizID string, choice int) (QuizResult, error) {
	quizzes, _, err := g.unitItems(unit)
	if err != nil {
		return QuizResult{}, err
	}
	idx := -1
	for i, q := range quizzes {
		if q.ID == quizID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return QuizResult{}, fmt.Errorf("quiz %q in %s: %w", quizID, unit, content.ErrNotFound)
	}
	q := quizzes[idx]
	res := QuizResult{Correct: q.Accepts(choice), CorrectIndex: q.Correct, Explanation: q.Explanation}
	if !res.Correct {
		return res, nil
	}

	ids := make([]string, len(quizzes))
	for i, q := range quizzes {
		ids[i] = q.ID
	}
	res.AllPassed, err = g.pass(ctx, unit, KindQuiz, quizID, ids, g.marker.MarkAllQuizzesComplete)
	return res, err
}

// AnswerTask grades answer for the task taskID of unit.
func (g *Grader) AnswerTask(ctx context.Context, unit Unit, taskID, answer string) (TaskResult, error) {
	_, tasks, err := g.unitItems(unit)
	if err != nil {
		return TaskResult{}, err
	}
	idx := -1
	for i, t := range tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return TaskResult{}, fmt.Errorf("task %q in %s: %w", taskID, unit, content.ErrNotFound)
	}
	t := tasks[idx]
	if !t.Accepts(answer) {
		return TaskResult{}, nil
	}
	res := TaskResult{Correct: true, Solution: t.Solution}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	res.AllPassed, err = g.pass(ctx, unit, KindTask, taskID, ids, g.marker.MarkAllTasksComplete)
	return res, err
}

// AnswerExercise grades answer and marks the exercise complete when it is
// correct and the caller is signed in.
func (g *Grader) AnswerExercise(ctx context.Context, exerciseID, answer string) (ExerciseResult, error) {
	ex, err := g.catalog.Exercise(exerciseID)
	if err != nil {
		return ExerciseResult{}, err
	}
	if !ex.Accepts(answer) {
		return ExerciseResult{}, nil
	}
	res := ExerciseResult{Correct: true, Solution: ex.Solution}
	if _, ok := auth.UserID(ctx); !ok {
		return res, nil
	}
	if err := g.marker.MarkExerciseComplete(ctx, exerciseID); err != nil {
		return res, err
	}
	res.Completed = true
	return res, nil
}

// ResetUnit clears the unit's completion and its grading session, so the
// quizzes and tasks have to be passed again.
func (g *Grader) ResetUnit(ctx context.Context, unit Unit) error {
	if err := unit.validate(); err != nil {
		return err
	}
	if err := g.marker.ResetUnit(ctx, unit.CourseID, unit.LessonID, unit.SublessonID); err != nil {
		return err
	}
	userID, _ := auth.UserID(ctx)
	g.clearAttempts(ctx, userID, unit)
	if unit.SublessonID != "" {
		return nil
	}

	// A lesson reset also removes its sub-lesson markers, so their sessions go too.
	l, err := g.catalog.Lesson(unit.CourseID, unit.LessonID)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			slog.Warn("listing sub-lessons for reset failed", "user_id", userID, "unit", unit.String(), "error", err)
		}
		return nil
	}
	for _, s := range l.Sublessons {
		g.clearAttempts(ctx, userID, Unit{CourseID: unit.CourseID, LessonID: unit.LessonID, SublessonID: s.ID})
	}
	return nil
}

func (g *Grader) clearAttempts(ctx context.Context, userID string, unit Unit) {
	if err := g.attempts.Clear(ctx, userID, unit); err != nil {
		slog.Warn("clearing grading session failed", "user_id", userID, "unit", unit.String(), "error", err)
	}
}

// pass records a correct answer and writes the unit marker once every item
// in ids has been passed.
func (g *Grader) pass(ctx context.Context, unit Unit, kind ItemKind, itemID string, ids []string,
	mark func(ctx context.Context, courseID, lessonID, sublessonID string) error) (bool, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return false, nil
	}
	if err := g.attempts.Record(ctx, userID, unit, kind, itemID); err != nil {
		return false, err
	}
	passed, err := g.attempts.Passed(ctx, userID, unit, kind)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if !passed[id] {
			return false, nil
		}
	}
	if err := mark(ctx, unit.CourseID, unit.LessonID, unit.SublessonID); err != nil {
		return true, err
	}
	return true, nil
}

func (g *Grader) unitItems(unit Unit) ([]content.Quiz, []content.Task, error) {
	if err := unit.validate(); err != nil {
		return nil, nil, err
	}
	if unit.SublessonID == "" {
		l, err := g.catalog.Lesson(unit.CourseID, unit.LessonID)
		if err != nil {
			return nil, nil, err
		}
		return l.Quizzes, l.Tasks, nil
	}
	s, _, err := g.catalog.Sublesson(unit.CourseID, unit.LessonID, unit.SublessonID)
	if err != nil {
		return nil, nil, err
	}
	return s.Quizzes, s.Tasks, nil
}

func (u Unit) validate() error {
	if u.CourseID == "" || u.LessonID == "" {
		return fmt.Errorf("unit needs course and lesson: %w", content.ErrInvalid)
	}
	// Attempt keys join the ids with colons.
	for _, id := range []string{u.CourseID, u.LessonID, u.SublessonID} {
		if strings.Contains(id, ":") {
			return fmt.Errorf("unit id %q contains ':': %w", id, content.ErrInvalid)
		}
	}
	return nil
}

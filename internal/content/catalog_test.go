package content_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/academy/internal/content"
)

// copyTestdata copies testdata into a temp dir so edits do not touch the repo.
func copyTestdata(t *testing.T) string {
	t.Helper()
	dst := t.TempDir()
	err := filepath.Walk("testdata", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel("testdata", path)
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err)
	return dst
}

func newCatalog(t *testing.T) (*content.Catalog, string) {
	t.Helper()
	dir := copyTestdata(t)
	cat, err := content.NewCatalog(dir)
	require.NoError(t, err)
	return cat, dir
}

func TestNewCatalog_LoadsValidContent(t *testing.T) {
	cat, _ := newCatalog(t)

	courses := cat.Courses()
	require.Len(t, courses, 1, "invalid course file must be skipped")
	assert.Equal(t, "py-basics", courses[0].ID)

	l, err := cat.Lesson("py-basics", "variables")
	require.NoError(t, err)
	assert.True(t, l.HasSublessons())
	assert.False(t, l.HasQuizzes())

	s, parent, err := cat.Sublesson("py-basics", "variables", "strings")
	require.NoError(t, err)
	assert.Equal(t, "variables", parent.ID)
	assert.True(t, s.HasTasks())

	assert.Len(t, cat.Exercises(content.ExerciseFilter{}), 3, "exercise with bad level must be skipped")
	assert.Equal(t, "About", cat.About().Title)
}

func TestNewCatalog_MissingDirIsEmpty(t *testing.T) {
	cat, err := content.NewCatalog(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, cat.Courses())
	assert.Empty(t, cat.Exercises(content.ExerciseFilter{}))
}

func TestCatalog_NotFound(t *testing.T) {
	cat, _ := newCatalog(t)

	_, err := cat.Course("missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = cat.Lesson("py-basics", "missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, _, err = cat.Sublesson("py-basics", "hello", "missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = cat.Exercise("missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	cat, _ := newCatalog(t)

	c, err := cat.Course("py-basics")
	require.NoError(t, err)
	c.Modules[0].Lessons[0].Title = "mutated"

	again, err := cat.Course("py-basics")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", again.Modules[0].Lessons[0].Title)
}

func TestCatalog_ExerciseFilter(t *testing.T) {
	cat, _ := newCatalog(t)
	none := ""
	py := "py-basics"

	tests := []struct {
		name   string
		filter content.ExerciseFilter
		want   []string
	}{
		{"all", content.ExerciseFilter{}, []string{"ex-sum", "ex-loop", "ex-free"}},
		{"level", content.ExerciseFilter{Level: 2}, []string{"ex-loop"}},
		{"course", content.ExerciseFilter{CourseID: &py}, []string{"ex-sum", "ex-loop"}},
		{"without course", content.ExerciseFilter{CourseID: &none}, []string{"ex-free"}},
		{"course and level", content.ExerciseFilter{CourseID: &py, Level: 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range cat.Exercises(tt.filter) {
				got = append(got, e.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_CourseCRUDPersists(t *testing.T) {
	cat, dir := newCatalog(t)

	created, err := cat.CreateCourse(content.Course{Title: "Go"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = cat.CreateCourse(content.Course{ID: created.ID, Title: "dup"})
	assert.ErrorIs(t, err, content.ErrConflict)

	m, err := cat.CreateModule(created.ID, content.Module{Title: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Number)

	_, err = cat.CreateLesson(created.ID, m.ID, content.Lesson{ID: "l1", Title: "Hello"})
	require.NoError(t, err)
	_, err = cat.CreateSublesson(created.ID, m.ID, "l1", content.Sublesson{ID: "s1", Title: "Part"})
	require.NoError(t, err)

	_, err = cat.UpdateCourse(created.ID, content.Course{Title: "Go 101"})
	require.NoError(t, err)

	reloaded, err := content.NewCatalog(dir)
	require.NoError(t, err)
	got, err := reloaded.Course(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go 101", got.Title)
	require.Len(t, got.Modules, 1, "update without modules keeps them")
	l, ok := got.FindLesson("l1")
	require.True(t, ok)
	assert.Len(t, l.Sublessons, 1)

	require.NoError(t, cat.DeleteSublesson(created.ID, m.ID, "l1", "s1"))
	require.NoError(t, cat.DeleteLesson(created.ID, m.ID, "l1"))
	require.NoError(t, cat.DeleteModule(created.ID, m.ID))
	require.NoError(t, cat.DeleteCourse(created.ID))
	_, err = os.Stat(filepath.Join(dir, "courses", created.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCatalog_InvalidEditIsRejected(t *testing.T) {
	cat, _ := newCatalog(t)

	_, err := cat.UpdateLesson("py-basics", "m1", "hello", content.Lesson{
		Title:   "Hello",
		Quizzes: []content.Quiz{{ID: "q", Question: "?", Options: []string{"a", "b"}, Correct: 5}},
	})
	assert.ErrorIs(t, err, content.ErrInvalid)

	l, err := cat.Lesson("py-basics", "hello")
	require.NoError(t, err)
	assert.Len(t, l.Quizzes, 2, "rejected edit must not be visible")

	_, err = cat.CreateLesson("py-basics", "m1", content.Lesson{ID: "hello", Title: "again"})
	assert.ErrorIs(t, err, content.ErrConflict)
}

func TestCatalog_ExerciseCRUDReplacesYAML(t *testing.T) {
	cat, dir := newCatalog(t)

	_, err := cat.CreateExercise(content.Exercise{ID: "ex-new", Title: "New", Level: 1, Answer: "x"})
	require.NoError(t, err)
	_, err = cat.CreateExercise(content.Exercise{Title: "No level"})
	assert.ErrorIs(t, err, content.ErrInvalid)

	_, err = cat.UpdateExercise("ex-sum", content.Exercise{Title: "Sum", Level: 2, Answer: "5"})
	require.NoError(t, err)
	require.NoError(t, cat.DeleteExercise("ex-free"))
	assert.ErrorIs(t, cat.DeleteExercise("ex-free"), content.ErrNotFound)

	_, err = os.Stat(filepath.Join(dir, "exercises.yaml"))
	assert.True(t, os.IsNotExist(err))

	reloaded, err := content.NewCatalog(dir)
	require.NoError(t, err)
	ex, err := reloaded.Exercise("ex-sum")
	require.NoError(t, err)
	assert.Equal(t, 2, ex.Level)
	assert.Len(t, reloaded.Exercises(content.ExerciseFilter{}), 3)

	require.NoError(t, cat.SetAbout(content.About{Title: "New about"}))
	reloaded, err = content.NewCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, "New about", reloaded.About().Title)
}

func TestLint_ReportsSkippedContent(t *testing.T) {
	problems, err := content.Lint("testdata")
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "broken.yaml")
	assert.Contains(t, problems[1], "ex-bad")
}

func TestLint_CleanAndMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "about.yaml"), []byte("title: About\n"), 0o644))
	problems, err := content.Lint(dir)
	require.NoError(t, err)
	assert.Empty(t, problems)

	_, err = content.Lint(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

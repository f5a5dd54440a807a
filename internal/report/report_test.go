package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/progress"
	"github.com/p-n-ai/academy/internal/report"
)

func TestWrite(t *testing.T) {
	courses := []content.Course{{
		ID:    "py101",
		Title: "Python Basics",
		Modules: []content.Module{{
			ID: "m1",
			Lessons: []content.Lesson{
				{ID: "intro"},
				{ID: "loops"},
			},
		}},
	}}
	exercises := []content.Exercise{
		{ID: "ex-1", CourseID: "py101"},
		{ID: "ex-2", CourseID: "py101"},
		{ID: "ex-3"},
	}
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	c := progress.Completion{}
	for _, k := range []progress.Key{progress.LessonKey("py101", "intro"), progress.ExerciseKey("ex-1")} {
		c[k] = progress.Record{Key: k, CompletedAt: at}
	}

	var buf bytes.Buffer
	err := report.Write(&buf, courses, exercises, []report.Learner{{Username: "alice", Completion: c}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.CoursesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "User", rows[0][0])
	assert.Equal(t, []string{"alice", "Python Basics", "1", "2", "0", "0", "0", "0", "50", "2025-03-01T09:30:00Z"}, rows[1])

	rows, err = f.GetRows(report.ExercisesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"alice", "Python Basics", "1", "2", "50"}, rows[1])
	assert.Equal(t, []string{"alice", "(no course)", "0", "1", "0"}, rows[2])
}

func TestBuild_NoLearners(t *testing.T) {
	f, err := report.Build(nil, nil, nil)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{report.CoursesSheet, report.ExercisesSheet}, f.GetSheetList())
}

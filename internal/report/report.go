// Package report exports learner progress as an XLSX workbook with one
// sheet of course statistics and one of trainer exercise statistics.
package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/progress"
)

const (
	CoursesSheet   = "Courses"
	ExercisesSheet = "Exercises"

	noCourse = "(no course)"
)

var (
	courseHeader = []any{
		"User", "Course", "Lessons done", "Lessons total", "Quiz sets done", "Quiz sets total",
		"Task sets done", "Task sets total", "Percent", "Last activity",
	}
	exerciseHeader = []any{"User", "Course", "Completed", "Total", "Percent"}
)

// Learner is one user's progress to export.
type Learner struct {
	Username   string
	Completion progress.Completion
}

// Build creates the workbook. Rows follow the order of learners, then the
// order of courses.
func Build(courses []content.Course, exercises []content.Exercise, learners []Learner) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", CoursesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(ExercisesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("adding sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating style: %w", err)
	}

	w := sheetWriter{f: f, style: bold}
	w.header(CoursesSheet, courseHeader)
	w.header(ExercisesSheet, exerciseHeader)

	for _, l := range learners {
		for _, c := range courses {
			st := l.Completion.CourseStats(c)
			last := ""
			if a := l.Completion.Activity(c.ID); a.LastActivity != nil {
				last = a.LastActivity.UTC().Format(time.RFC3339)
			}
			w.row(CoursesSheet, []any{
				l.Username, c.Title,
				st.Lessons.Completed, st.Lessons.Total,
				st.Quizzes.Completed, st.Quizzes.Total,
				st.Tasks.Completed, st.Tasks.Total,
				st.Percentage, last,
			})
		}
		for _, courseID := range exerciseCourses(exercises) {
			st := l.Completion.CourseExerciseStats(exercises, courseID)
			w.row(ExercisesSheet, []any{l.Username, courseLabel(courses, courseID), st.Completed, st.Total, st.Percentage})
		}
	}
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	for _, sheet := range []string{CoursesSheet, ExercisesSheet} {
		if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
			f.Close()
			return nil, fmt.Errorf("sizing columns: %w", err)
		}
	}
	return f, nil
}

// Write builds the workbook and writes it to out.
func Write(out io.Writer, courses []content.Course, exercises []content.Exercise, learners []Learner) error {
	f, err := Build(courses, exercises, learners)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// exerciseCourses lists the distinct course ids of exercises in first-seen
// order, "" standing for exercises without a course.
func exerciseCourses(exercises []content.Exercise) []string {
	var ids []string
	for _, e := range exercises {
		if !slices.Contains(ids, e.CourseID) {
			ids = append(ids, e.CourseID)
		}
	}
	return ids
}

func courseLabel(courses []content.Course, id string) string {
	if id == "" {
		return noCourse
	}
	for _, c := range courses {
		if c.ID == id {
			return c.Title
		}
	}
	return id
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	style int
	rows  map[string]int
	err   error
}

func (w *sheetWriter) header(sheet string, values []any) {
	w.row(sheet, values)
	if w.err != nil {
		return
	}
	end, err := excelize.CoordinatesToCellName(len(values), 1)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellStyle(sheet, "A1", end, w.style); err != nil {
		w.err = fmt.Errorf("styling header: %w", err)
	}
}

func (w *sheetWriter) row(sheet string, values []any) {
	if w.err != nil {
		return
	}
	if w.rows == nil {
		w.rows = make(map[string]int)
	}
	w.rows[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, w.rows[sheet])
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("writing %s row %d: %w", sheet, w.rows[sheet], err)
	}
}

package progress

import (
	"math"
	"time"

	"github.com/p-n-ai/academy/internal/content"
)

// Count is a completed/total pair.
type Count struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// CourseStats aggregates a course. Lessons counts lessons and sub-lessons
// alike; quizzes and tasks are credited per unit, all or nothing.
type CourseStats struct {
	Lessons    Count `json:"lessons"`
	Quizzes    Count `json:"quizzes"`
	Tasks      Count `json:"tasks"`
	Percentage int   `json:"percentage"`
}

// ExerciseStats aggregates a set of trainer exercises.
type ExerciseStats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Activity summarises one course: how many records exist under it and when
// the most recent one was written.
type Activity struct {
	CompletedCount int        `json:"completedCount"`
	LastActivity   *time.Time `json:"lastActivity"`
}

// IsUnitComplete reports whether the exact unit key is recorded. It does not
// look at descendants.
func (c Completion) IsUnitComplete(courseID, lessonID, sublessonID string) bool {
	return c.Has(UnitKey(courseID, lessonID, sublessonID))
}

// IsLessonFullyComplete applies the composite rule: every sub-lesson must be
// complete, then the quiz and task markers must be present for whichever of
// those the lesson has. Only a lesson with none of the three falls back to
// its own completion flag.
func (c Completion) IsLessonFullyComplete(courseID string, lesson content.Lesson) bool {
	for _, s := range lesson.Sublessons {
		if !c.Has(SublessonKey(courseID, lesson.ID, s.ID)) {
			return false
		}
	}

	if !lesson.HasSublessons() && !lesson.HasQuizzes() && !lesson.HasTasks() {
		return c.Has(LessonKey(courseID, lesson.ID))
	}

	if lesson.HasQuizzes() && !c.Has(QuizzesKey(courseID, lesson.ID, "")) {
		return false
	}
	if lesson.HasTasks() && !c.Has(TasksKey(courseID, lesson.ID, "")) {
		return false
	}
	return true
}

// CourseStats walks the course tree once.
func (c Completion) CourseStats(course content.Course) CourseStats {
	var st CourseStats
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			st.Lessons.Total++
			if c.IsLessonFullyComplete(course.ID, l) {
				st.Lessons.Completed++
			}
			c.creditSets(&st, course.ID, l.ID, "", len(l.Quizzes), len(l.Tasks))

			for _, s := range l.Sublessons {
				st.Lessons.Total++
				if c.Has(SublessonKey(course.ID, l.ID, s.ID)) {
					st.Lessons.Completed++
				}
				c.creditSets(&st, course.ID, l.ID, s.ID, len(s.Quizzes), len(s.Tasks))
			}
		}
	}
	st.Percentage = percent(st.Lessons.Completed, st.Lessons.Total)
	return st
}

func (c Completion) creditSets(st *CourseStats, courseID, lessonID, sublessonID string, quizzes, tasks int) {
	if quizzes > 0 {
		st.Quizzes.Total += quizzes
		if c.Has(QuizzesKey(courseID, lessonID, sublessonID)) {
			st.Quizzes.Completed += quizzes
		}
	}
	if tasks > 0 {
		st.Tasks.Total += tasks
		if c.Has(TasksKey(courseID, lessonID, sublessonID)) {
			st.Tasks.Completed += tasks
		}
	}
}

// IsExerciseComplete reports whether the exercise is recorded.
func (c Completion) IsExerciseComplete(exerciseID string) bool {
	return c.Has(ExerciseKey(exerciseID))
}

// ExerciseStats counts the given exercises that are complete.
func (c Completion) ExerciseStats(exercises []content.Exercise) ExerciseStats {
	var st ExerciseStats
	for _, e := range exercises {
		st.Total++
		if c.IsExerciseComplete(e.ID) {
			st.Completed++
		}
	}
	st.Percentage = percent(st.Completed, st.Total)
	return st
}

// CourseExerciseStats is ExerciseStats over the exercises of one course.
// An empty courseID selects exercises that belong to no course.
func (c Completion) CourseExerciseStats(exercises []content.Exercise, courseID string) ExerciseStats {
	var subset []content.Exercise
	for _, e := range exercises {
		if e.CourseID == courseID {
			subset = append(subset, e)
		}
	}
	return c.ExerciseStats(subset)
}

// Activity summarises the lesson records of one course.
func (c Completion) Activity(courseID string) Activity {
	var a Activity
	for k, r := range c {
		if k.Kind == KindExercise || k.CourseID != courseID {
			continue
		}
		a.CompletedCount++
		if a.LastActivity == nil || r.CompletedAt.After(*a.LastActivity) {
			t := r.CompletedAt
			a.LastActivity = &t
		}
	}
	return a
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

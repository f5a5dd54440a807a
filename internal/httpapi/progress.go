package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/grading"
	"github.com/p-n-ai/academy/internal/progress"
	"github.com/p-n-ai/academy/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Engine.Snapshot(r.Context()))
}

func decodeUnit(r *http.Request) (grading.Unit, error) {
	var u grading.Unit
	if err := decode(r, &u); err != nil {
		return u, err
	}
	if u.CourseID == "" || u.LessonID == "" {
		return u, fmt.Errorf("%w: courseId and lessonId are required", errBadRequest)
	}
	return u, nil
}

// handleMarkUnit records an explicit "mark as complete" on a lesson or
// sub-lesson the catalogue knows about.
func (s *Server) handleMarkUnit(w http.ResponseWriter, r *http.Request) {
	u, err := decodeUnit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u.SublessonID == "" {
		_, err = s.cfg.Catalog.Lesson(u.CourseID, u.LessonID)
	} else {
		_, _, err = s.cfg.Catalog.Sublesson(u.CourseID, u.LessonID, u.SublessonID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Engine.MarkUnitComplete(r.Context(), u.CourseID, u.LessonID, u.SublessonID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetUnit resets a unit even when it no longer exists in the
// catalogue, so stale records can always be cleared.
func (s *Server) handleResetUnit(w http.ResponseWriter, r *http.Request) {
	u, err := decodeUnit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Grader.ResetUnit(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unitStatus struct {
	ID            string       `json:"id"`
	Complete      bool         `json:"complete"`
	FullyComplete bool         `json:"fullyComplete"`
	QuizzesPassed bool         `json:"quizzesPassed"`
	TasksPassed   bool         `json:"tasksPassed"`
	Sublessons    []unitStatus `json:"sublessons,omitempty"`
}

type courseProgress struct {
	CourseID  string                 `json:"courseId"`
	Stats     progress.CourseStats   `json:"stats"`
	Activity  progress.Activity      `json:"activity"`
	Exercises progress.ExerciseStats `json:"exercises"`
	Lessons   []unitStatus           `json:"lessons"`
}

func (s *Server) handleCourseProgress(w http.ResponseWriter, r *http.Request) {
	course, err := s.cfg.Catalog.Course(r.PathValue("courseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	out := courseProgress{
		CourseID:  course.ID,
		Stats:     s.cfg.Engine.CourseStats(ctx, course),
		Activity:  s.cfg.Engine.Activity(ctx, course.ID),
		Exercises: s.cfg.Engine.CourseExerciseStats(ctx, s.cfg.Catalog.Exercises(contentAll), course.ID),
		Lessons:   []unitStatus{},
	}
	c := s.cfg.Engine.Snapshot(ctx)
	for _, l := range course.Lessons() {
		st := unitStatus{
			ID:            l.ID,
			Complete:      s.cfg.Engine.IsUnitComplete(ctx, course.ID, l.ID, ""),
			FullyComplete: s.cfg.Engine.IsLessonFullyComplete(ctx, course.ID, l),
			QuizzesPassed: c.Has(progress.QuizzesKey(course.ID, l.ID, "")),
			TasksPassed:   c.Has(progress.TasksKey(course.ID, l.ID, "")),
		}
		for _, sub := range l.Sublessons {
			done := c.IsUnitComplete(course.ID, l.ID, sub.ID)
			st.Sublessons = append(st.Sublessons, unitStatus{
				ID:            sub.ID,
				Complete:      done,
				FullyComplete: done,
				QuizzesPassed: c.Has(progress.QuizzesKey(course.ID, l.ID, sub.ID)),
				TasksPassed:   c.Has(progress.TasksKey(course.ID, l.ID, sub.ID)),
			})
		}
		out.Lessons = append(out.Lessons, st)
	}
	writeJSON(w, http.StatusOK, out)
}

type exerciseProgress struct {
	progress.ExerciseStats
	Completed []string `json:"completedIds"`
}

// handleExerciseProgress reports trainer stats, optionally narrowed by the
// same level and courseId filters as the exercise list.
func (s *Server) handleExerciseProgress(w http.ResponseWriter, r *http.Request) {
	f, err := exerciseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	exercises := s.cfg.Catalog.Exercises(f)
	ctx := r.Context()
	out := exerciseProgress{ExerciseStats: s.cfg.Engine.ExerciseStats(ctx, exercises), Completed: []string{}}
	for _, e := range exercises {
		if s.cfg.Engine.IsExerciseComplete(ctx, e.ID) {
			out.Completed = append(out.Completed, e.ID)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportMine(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	learners := []report.Learner{{Username: id.Username, Completion: s.cfg.Engine.Snapshot(r.Context())}}
	s.writeReport(w, r, "progress", learners)
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, name string, learners []report.Learner) {
	f, err := report.Build(s.cfg.Catalog.Courses(), s.cfg.Catalog.Exercises(contentAll), learners)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, name, time.Now().UTC().Format("20060102")))
	if err := f.Write(w); err != nil {
		slog.Error("writing report failed", "error", err)
	}
}

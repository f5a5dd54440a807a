package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/p-n-ai/academy/internal/content"
)

var contentAll = content.ExerciseFilter{}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses := s.cfg.Catalog.Courses()
	out := make([]courseView, len(courses))
	for i, c := range courses {
		out[i] = newCourseView(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.cfg.Catalog.Course(r.PathValue("courseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCourseView(c))
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := s.cfg.Catalog.Lesson(r.PathValue("courseID"), r.PathValue("lessonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLessonView(l))
}

func (s *Server) handleGetSublesson(w http.ResponseWriter, r *http.Request) {
	sub, _, err := s.cfg.Catalog.Sublesson(r.PathValue("courseID"), r.PathValue("lessonID"), r.PathValue("sublessonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSublessonView(sub))
}

// exerciseFilter reads ?level= and ?courseId=. A courseId parameter that is
// present but empty selects exercises without a course.
func exerciseFilter(r *http.Request) (content.ExerciseFilter, error) {
	var f content.ExerciseFilter
	q := r.URL.Query()
	if v := q.Get("level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("%w: level must be a number", errBadRequest)
		}
		f.Level = level
	}
	if q.Has("courseId") {
		id := q.Get("courseId")
		f.CourseID = &id
	}
	return f, nil
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	f, err := exerciseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	exercises := s.cfg.Catalog.Exercises(f)
	out := make([]exerciseView, len(exercises))
	for i, e := range exercises {
		out[i] = newExerciseView(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	e, err := s.cfg.Catalog.Exercise(r.PathValue("exerciseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExerciseView(e))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Catalog.About())
}

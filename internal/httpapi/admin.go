package httpapi

import (
	"net/http"

	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/progress"
	"github.com/p-n-ai/academy/internal/report"
)

// Admin handlers work on the full content documents, answers included.

func (s *Server) handleAdminGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.cfg.Catalog.Course(r.PathValue("courseID"))
	respond(w, r, http.StatusOK, c, err)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var c content.Course
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.CreateCourse(c)
	respond(w, r, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var c content.Course
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.UpdateCourse(r.PathValue("courseID"), c)
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.cfg.Catalog.DeleteCourse(r.PathValue("courseID")))
}

func (s *Server) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	var m content.Module
	if err := decode(r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.CreateModule(r.PathValue("courseID"), m)
	respond(w, r, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateModule(w http.ResponseWriter, r *http.Request) {
	var m content.Module
	if err := decode(r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.UpdateModule(r.PathValue("courseID"), r.PathValue("moduleID"), m)
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleDeleteModule(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.cfg.Catalog.DeleteModule(r.PathValue("courseID"), r.PathValue("moduleID")))
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var l content.Lesson
	if err := decode(r, &l); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.CreateLesson(r.PathValue("courseID"), r.PathValue("moduleID"), l)
	respond(w, r, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateLesson(w http.ResponseWriter, r *http.Request) {
	var l content.Lesson
	if err := decode(r, &l); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.UpdateLesson(r.PathValue("courseID"), r.PathValue("moduleID"), r.PathValue("lessonID"), l)
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.cfg.Catalog.DeleteLesson(r.PathValue("courseID"), r.PathValue("moduleID"), r.PathValue("lessonID")))
}

func (s *Server) handleCreateSublesson(w http.ResponseWriter, r *http.Request) {
	var sub content.Sublesson
	if err := decode(r, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.CreateSublesson(r.PathValue("courseID"), r.PathValue("moduleID"), r.PathValue("lessonID"), sub)
	respond(w, r, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateSublesson(w http.ResponseWriter, r *http.Request) {
	var sub content.Sublesson
	if err := decode(r, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.UpdateSublesson(r.PathValue("courseID"), r.PathValue("moduleID"),
		r.PathValue("lessonID"), r.PathValue("sublessonID"), sub)
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleDeleteSublesson(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.cfg.Catalog.DeleteSublesson(r.PathValue("courseID"), r.PathValue("moduleID"),
		r.PathValue("lessonID"), r.PathValue("sublessonID")))
}

func (s *Server) handleAdminListExercises(w http.ResponseWriter, r *http.Request) {
	f, err := exerciseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Catalog.Exercises(f))
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var e content.Exercise
	if err := decode(r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.CreateExercise(e)
	respond(w, r, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var e content.Exercise
	if err := decode(r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.cfg.Catalog.UpdateExercise(r.PathValue("exerciseID"), e)
	respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, s.cfg.Catalog.DeleteExercise(r.PathValue("exerciseID")))
}

func (s *Server) handleSetAbout(w http.ResponseWriter, r *http.Request) {
	var a content.About
	if err := decode(r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Catalog.SetAbout(a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleExportAll exports every user's stored progress.
func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	users, err := s.cfg.Accounts.Store().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	learners := make([]report.Learner, len(users))
	for i, u := range users {
		c := u.Progress
		if c == nil {
			c = progress.Completion{}
		}
		learners[i] = report.Learner{Username: u.Username, Completion: c}
	}
	s.writeReport(w, r, "academy-progress", learners)
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

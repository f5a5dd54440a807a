package httpapi

import (
	"fmt"
	"net/http"

	"github.com/p-n-ai/academy/internal/grading"
)

type quizAnswer struct {
	grading.Unit
	QuizID string `json:"quizId"`
	Choice *int   `json:"choice"`
}

type taskAnswer struct {
	grading.Unit
	TaskID string `json:"taskId"`
	Answer string `json:"answer"`
}

type exerciseAnswer struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAnswerQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizAnswer
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.QuizID == "" || req.Choice == nil {
		writeError(w, r, fmt.Errorf("%w: quizId and choice are required", errBadRequest))
		return
	}
	res, err := s.cfg.Grader.AnswerQuiz(r.Context(), req.Unit, req.QuizID, *req.Choice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnswerTask(w http.ResponseWriter, r *http.Request) {
	var req taskAnswer
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TaskID == "" {
		writeError(w, r, fmt.Errorf("%w: taskId is required", errBadRequest))
		return
	}
	res, err := s.cfg.Grader.AnswerTask(r.Context(), req.Unit, req.TaskID, req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnswerExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseAnswer
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.cfg.Grader.AnswerExercise(r.Context(), r.PathValue("exerciseID"), req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Package httpapi serves the JSON API: accounts, content browsing, progress,
// grading, the admin content editor, health checks and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/grading"
	"github.com/p-n-ai/academy/internal/live"
	"github.com/p-n-ai/academy/internal/platform/metrics"
	"github.com/p-n-ai/academy/internal/progress"
)

const maxBodyBytes = 1 << 20

// Config holds the server's collaborators.
type Config struct {
	Catalog  *content.Catalog
	Accounts *account.Service
	Engine   *progress.Engine
	Grader   *grading.Grader
	Issuer   *auth.Issuer
	Hub      *live.Hub
	Metrics  *metrics.Metrics
	IsAdmin  func(username string) bool
	// LoginRate is the number of login attempts allowed per client per
	// minute. Zero disables the limit.
	LoginRate int
	// Ready reports whether storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server routes HTTP requests to the application.
type Server struct {
	cfg     Config
	limiter *loginLimiter
	mux     *http.ServeMux
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	if cfg.IsAdmin == nil {
		cfg.IsAdmin = func(string) bool { return false }
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	if cfg.LoginRate > 0 {
		s.limiter = newLoginLimiter(cfg.LoginRate, time.Minute)
	}
	s.routes()
	return s
}

// Handler returns the root handler with authentication and metrics applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.cfg.Issuer.Middleware(s.mux)
	if s.cfg.Metrics != nil {
		h = s.cfg.Metrics.Middleware(h)
	}
	return h
}

func (s *Server) routes() {
	mux := s.mux
	user := auth.RequireUser
	admin := func(h http.HandlerFunc) http.Handler { return auth.RequireAdmin(s.cfg.IsAdmin, h) }

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("POST /api/auth/logout", user(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/auth/me", user(http.HandlerFunc(s.handleMe)))
	mux.Handle("PUT /api/auth/password", user(http.HandlerFunc(s.handleChangePassword)))

	mux.HandleFunc("GET /api/courses", s.handleListCourses)
	mux.HandleFunc("GET /api/courses/{courseID}", s.handleGetCourse)
	mux.HandleFunc("GET /api/courses/{courseID}/lessons/{lessonID}", s.handleGetLesson)
	mux.HandleFunc("GET /api/courses/{courseID}/lessons/{lessonID}/sublessons/{sublessonID}", s.handleGetSublesson)
	mux.HandleFunc("GET /api/exercises", s.handleListExercises)
	mux.HandleFunc("GET /api/exercises/{exerciseID}", s.handleGetExercise)
	mux.HandleFunc("GET /api/about", s.handleAbout)

	mux.Handle("GET /api/progress", user(http.HandlerFunc(s.handleSnapshot)))
	mux.Handle("POST /api/progress/units/complete", user(http.HandlerFunc(s.handleMarkUnit)))
	mux.Handle("POST /api/progress/units/reset", user(http.HandlerFunc(s.handleResetUnit)))
	mux.Handle("GET /api/progress/courses/{courseID}", user(http.HandlerFunc(s.handleCourseProgress)))
	mux.Handle("GET /api/progress/exercises", user(http.HandlerFunc(s.handleExerciseProgress)))
	mux.Handle("GET /api/progress/export", user(http.HandlerFunc(s.handleExportMine)))
	if s.cfg.Hub != nil {
		mux.Handle("GET /api/progress/live", user(s.cfg.Hub))
	}

	mux.HandleFunc("POST /api/grading/quiz", s.handleAnswerQuiz)
	mux.HandleFunc("POST /api/grading/task", s.handleAnswerTask)
	mux.HandleFunc("POST /api/grading/exercises/{exerciseID}", s.handleAnswerExercise)

	mux.Handle("GET /api/admin/courses/{courseID}", admin(s.handleAdminGetCourse))
	mux.Handle("POST /api/admin/courses", admin(s.handleCreateCourse))
	mux.Handle("PUT /api/admin/courses/{courseID}", admin(s.handleUpdateCourse))
	mux.Handle("DELETE /api/admin/courses/{courseID}", admin(s.handleDeleteCourse))
	mux.Handle("POST /api/admin/courses/{courseID}/modules", admin(s.handleCreateModule))
	mux.Handle("PUT /api/admin/courses/{courseID}/modules/{moduleID}", admin(s.handleUpdateModule))
	mux.Handle("DELETE /api/admin/courses/{courseID}/modules/{moduleID}", admin(s.handleDeleteModule))
	mux.Handle("POST /api/admin/courses/{courseID}/modules/{moduleID}/lessons", admin(s.handleCreateLesson))
	mux.Handle("PUT /api/admin/courses/{courseID}/modules/{moduleID}/lessons/{lessonID}", admin(s.handleUpdateLesson))
	mux.Handle("DELETE /api/admin/courses/{courseID}/modules/{moduleID}/lessons/{lessonID}", admin(s.handleDeleteLesson))
	mux.Handle("POST /api/admin/courses/{courseID}/modules/{moduleID}/lessons/{lessonID}/sublessons", admin(s.handleCreateSublesson))
	mux.Handle("PUT /api/admin/courses/{courseID}/modules/{moduleID}/lessons/{lessonID}/sublessons/{sublessonID}", admin(s.handleUpdateSublesson))
	mux.Handle("DELETE /api/admin/courses/{courseID}/modules/{moduleID}/lessons/{lessonID}/sublessons/{sublessonID}", admin(s.handleDeleteSublesson))
	mux.Handle("GET /api/admin/exercises", admin(s.handleAdminListExercises))
	mux.Handle("POST /api/admin/exercises", admin(s.handleCreateExercise))
	mux.Handle("PUT /api/admin/exercises/{exerciseID}", admin(s.handleUpdateExercise))
	mux.Handle("DELETE /api/admin/exercises/{exerciseID}", admin(s.handleDeleteExercise))
	mux.Handle("PUT /api/admin/about", admin(s.handleSetAbout))
	mux.Handle("GET /api/admin/export", admin(s.handleExportAll))
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Ready(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps known errors to status codes. Anything else is logged and
// reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, progress.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "sign in required"
	case errors.Is(err, account.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, account.ErrNotFound), errors.Is(err, content.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, account.ErrUsernameTaken), errors.Is(err, content.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, account.ErrInvalidInput), errors.Is(err, content.ErrInvalid), errors.Is(err, errBadRequest):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, progress.ErrPersist):
		status, msg = http.StatusServiceUnavailable, "progress could not be saved, try again"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}
	return nil
}

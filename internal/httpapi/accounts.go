package httpapi

import (
	"net/http"
	"time"

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	IsAdmin   bool      `json:"isAdmin"`
}

type sessionResponse struct {
	User      userView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) userView(u *account.User) userView {
	return userView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt, IsAdmin: s.cfg.IsAdmin(u.Username)}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.cfg.Accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.startSession(w, r, u, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many login attempts, try again later"})
		return
	}
	var req credentials
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.cfg.Accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.startSession(w, r, u, http.StatusOK)
}

// startSession issues a token and loads the user's progress into the engine.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *account.User, status int) {
	id := auth.Identity{UserID: u.ID, Username: u.Username}
	token, exp, err := s.cfg.Issuer.Issue(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.cfg.Engine.Load(auth.WithIdentity(r.Context(), id))
	writeJSON(w, status, sessionResponse{User: s.userView(u), Token: token, ExpiresAt: exp})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	s.cfg.Engine.Forget(id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	u, err := s.cfg.Accounts.Get(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.userView(u))
}

type passwordChange struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := auth.FromContext(r.Context())
	if err := s.cfg.Accounts.ChangePassword(r.Context(), id.UserID, req.Current, req.New); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

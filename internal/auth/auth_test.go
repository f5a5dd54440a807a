package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/academy/internal/auth"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)

	token, exp, err := iss.Issue(auth.Identity{UserID: "u1", Username: "Ada"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u1", Username: "Ada"}, id)
}

func TestIssuer_RejectsBadTokens(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	other := auth.NewIssuer("other", time.Hour)
	expired := auth.NewIssuer("secret", -time.Minute)

	forged, _, err := other.Issue(auth.Identity{UserID: "u1"})
	require.NoError(t, err)
	old, _, err := expired.Issue(auth.Identity{UserID: "u1"})
	require.NoError(t, err)

	for name, tok := range map[string]string{"garbage": "abc", "forged": forged, "expired": old} {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(tok)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestUserID_Anonymous(t *testing.T) {
	_, ok := auth.UserID(context.Background())
	assert.False(t, ok)

	_, ok = auth.UserID(auth.WithIdentity(context.Background(), auth.Identity{}))
	assert.False(t, ok, "empty identity is anonymous")

	id, ok := auth.UserID(auth.WithIdentity(context.Background(), auth.Identity{UserID: "u1"}))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestMiddleware(t *testing.T) {
	iss := auth.NewIssuer("secret", time.Hour)
	token, _, err := iss.Issue(auth.Identity{UserID: "u1", Username: "ada"})
	require.NoError(t, err)

	var seen string
	h := iss.Middleware(auth.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserID(r.Context())
	})))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + token, "", http.StatusOK},
		{"query token", "", "?access_token=" + token, http.StatusOK},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "u1", seen)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := auth.RequireAdmin(func(u string) bool { return u == "root" }, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "1", Username: "ada"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "2", Username: "root"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

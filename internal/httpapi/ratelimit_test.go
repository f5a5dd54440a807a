package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l := newLoginLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"), "burst spent")
	assert.True(t, l.allow("b"), "clients are limited separately")

	now = now.Add(30 * time.Second)
	assert.True(t, l.allow("a"), "one attempt refilled")
	assert.False(t, l.allow("a"))

	now = now.Add(10 * time.Minute)
	l.allow("c")
	assert.Len(t, l.visitors, 1, "idle clients are swept")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:5123"
	assert.Equal(t, "203.0.113.7", clientIP(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(r))
}

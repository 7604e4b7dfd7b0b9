package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTakeWindow(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2, CleanupInterval: time.Hour})
	defer l.Stop()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	ok, wait := l.Take("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)
	assert.True(t, l.Allow("b"), "clients are limited independently")

	now = now.Add(30 * time.Second)
	ok, wait = l.Take("a")
	assert.False(t, ok, "steady traffic does not extend the window")
	assert.Equal(t, 30*time.Second, wait)

	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow("a"))
}

func TestSweepForgetsIdleClients(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 5, CleanupInterval: time.Hour, IdleTTL: 10 * time.Minute})
	defer l.Stop()
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.ActiveClients())

	now = now.Add(11 * time.Minute)
	l.Allow("b")
	assert.Equal(t, 1, l.sweep())
	assert.Equal(t, 1, l.ActiveClients())
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(200*time.Millisecond))
	assert.Equal(t, 31, retrySeconds(30*time.Second+time.Millisecond))
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	defer l.Stop()
	start := time.Now()
	l.now = func() time.Time { return start }

	var limited []string
	h := l.Middleware(
		func(r *http.Request) string { return r.RemoteAddr },
		func(_ *http.Request, ip string) { limited = append(limited, ip) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "198.51.100.1"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, []string{"198.51.100.1"}, limited)

	l.Stop()
	l.Stop()
}

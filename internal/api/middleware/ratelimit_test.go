package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyboard-api/internal/api/middleware"
	"github.com/storyloom/storyboard-api/internal/ratelimit"
)

// fakeClock is a controllable time source for window expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRateLimitedHandler(clock *fakeClock, category ratelimit.Category) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryWindowStore(), clock.Now, logger)
	tiers := ratelimit.NewTierCache(0, clock.Now, logger)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return middleware.RateLimitMiddleware(limiter, tiers, category)(next)
}

func TestRateLimitMiddlewareAllowsWithinLimit(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	handler := newRateLimitedHandler(clock, ratelimit.CategoryJobSubmit)

	limit := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierFree).Limit
	for i := 0; i < limit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code, "request %d should pass", i)
		assert.Equal(t, strconv.Itoa(limit), w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(limit-i-1), w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddlewareDeniesWhenExhausted(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	handler := newRateLimitedHandler(clock, ratelimit.CategoryJobSubmit)

	limit := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierFree).Limit
	for i := 0; i < limit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimitMiddlewareWindowReset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	handler := newRateLimitedHandler(clock, ratelimit.CategoryJobSubmit)

	cfg := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierFree)
	for i := 0; i < cfg.Limit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	clock.Advance(cfg.Window + time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitMiddlewareSeparatesClientsByAPIKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	handler := newRateLimitedHandler(clock, ratelimit.CategoryJobSubmit)

	limit := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierFree).Limit
	for i := 0; i < limit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		req.Header.Set("X-API-Key", "key-alpha")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// Same source IP, different key: independent window.
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	req.Header.Set("X-API-Key", "key-beta")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitMiddlewarePaidTierHigherLimit(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	handler := newRateLimitedHandler(clock, ratelimit.CategoryJobSubmit)

	freeLimit := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierFree).Limit
	paidLimit := ratelimit.LimitFor(ratelimit.CategoryJobSubmit, ratelimit.TierPaid).Limit
	require.Greater(t, paidLimit, freeLimit)

	for i := 0; i < freeLimit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
		req.Header.Set("X-API-Key", "key-paid")
		req.Header.Set("X-API-Tier", "paid")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code, "request %d should pass on paid tier", i)
	}
}

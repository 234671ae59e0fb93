package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int) (*RateLimiter, func(time.Duration)) {
	var mu sync.Mutex
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
	}
	rl.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
	return rl, advance
}

func TestAllowWithinBudget(t *testing.T) {
	rl, _ := newTestLimiter(3)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("alice"))

	// Other callers have independent budgets.
	assert.True(t, rl.Allow("bob"))
}

func TestWindowResets(t *testing.T) {
	rl, advance := newTestLimiter(1)
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	advance(61 * time.Second)
	assert.True(t, rl.Allow("alice"))
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	rl, _ := newTestLimiter(1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.Header.Set("X-Agent-ID", "alice")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestAnonymousCallersShareOneBucket(t *testing.T) {
	rl, _ := newTestLimiter(1)
	assert.True(t, rl.Allow("anonymous"))

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

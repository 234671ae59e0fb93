// Package middleware holds HTTP middleware shared by the gateway routes.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-caller request budget on the gateway. Callers
// are keyed by their verified X-Agent-ID; anonymous read traffic shares one
// bucket. Counting uses a fixed one-minute window, which is a soft limit:
// a caller switching windows can briefly exceed the configured rate.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	now     func() time.Time
}

type window struct {
	count int
	start time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per caller per
// minute. A non-positive limit defaults to 120.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		now:     time.Now,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether one more request from key fits the current window.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) > time.Minute {
		rl.windows[key] = &window{count: 1, start: now}
		return true
	}
	w.count++
	return w.count <= rl.limit
}

// Middleware rejects over-budget callers with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Agent-ID")
		if key == "" {
			key = "anonymous"
		}
		if !rl.Allow(key) {
			slog.Warn("rate limit exceeded", "caller", key)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":"RATE_LIMITED","error":"request budget exceeded, retry in 60s"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sweep drops stale windows so idle callers do not accumulate.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-2 * time.Minute)
		for key, w := range rl.windows {
			if w.start.Before(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

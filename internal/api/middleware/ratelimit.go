// Package middleware holds router middleware that isn't tied to a domain.
package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// RateLimiter is a fixed-window in-memory rate limiter keyed by client IP.
// Good enough for a single process; a shared deployment would need a
// distributed limiter in front instead.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit  int
	period time.Duration
}

type window struct {
	expires time.Time
	count   int
}

// NewRateLimiter allows limit requests per period per client
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.evictLoop()
	return rl
}

// Middleware rejects clients over their window budget with a 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			err := json.NewEncoder(w).Encode(map[string]string{
				"error": "Too Many Requests",
			})
			if err != nil {
				log.Printf("Failed to encode rate limit response: %v", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UTC()

	win, ok := rl.windows[client]
	if !ok || now.After(win.expires) {
		rl.windows[client] = &window{count: 1, expires: now.Add(rl.period)}
		return true
	}

	if win.count >= rl.limit {
		return false
	}
	win.count++
	return true
}

// evictLoop drops expired windows so idle clients don't accumulate
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.period)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now().UTC()
		rl.mu.Lock()
		for client, win := range rl.windows {
			if now.After(win.expires) {
				delete(rl.windows, client)
			}
		}
		rl.mu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}

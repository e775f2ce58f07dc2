package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed window counter. Each key's window opens with its
// first hit; rejected hits are not counted.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// StartCleanup evicts expired windows every window until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.mu.Lock()
				now := rl.now()
				for key, v := range rl.visitors {
					if now.Sub(v.windowStart) >= rl.window {
						delete(rl.visitors, key)
					}
				}
				rl.mu.Unlock()
			}
		}
	}()
}

// Allow records a hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.Sub(v.windowStart) >= rl.window {
		v = &visitor{windowStart: now}
		rl.visitors[key] = v
	}
	if v.count >= rl.limit {
		return false
	}
	v.count++
	return true
}

// Middleware limits by client address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.KeyedMiddleware(ClientIP)(next)
}

// KeyedMiddleware limits by whatever key returns, for example the user id.
func (rl *RateLimiter) KeyedMiddleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(key(r)) {
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByUser keys on the authenticated user; it must run after JWTAuth.Middleware.
func ByUser(r *http.Request) string { return GetUserID(r.Context()).String() }

// ClientIP is the remote host without its port. Behind chi's RealIP
// middleware that is the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package middleware's rate limiter throttles the admin debug surface per
// caller key (the admin anomalies endpoint keys it by authenticated user
// id), independent of QuotaEngine's per-user calendar caps on
// metered operations — this is connection-level noise protection, not a
// product quota.
package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// IPRateLimiter holds one rate.Limiter per key (typically caller IP),
// the same golang.org/x/time/rate.NewLimiter construction the teacher
// uses for its origin-fetch throttle, generalized to a per-key map.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewIPRateLimiter builds a limiter allowing r requests/second per key,
// with bursts up to burst.
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (rl *IPRateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a request for key may proceed right now.
func (rl *IPRateLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}
	return rl.limiterFor(key).Allow()
}

// RateLimitMiddleware wraps next, rejecting with 429 any request whose
// keyFunc-extracted key has exhausted its limiter.
func RateLimitMiddleware(next http.Handler, limiter *IPRateLimiter, keyFunc func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFunc(r)
		if key != "" && !limiter.Allow(key) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// KeyByIP extracts the caller's address for per-IP rate limiting,
// preferring a proxy-supplied header over the raw connection address.
func KeyByIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

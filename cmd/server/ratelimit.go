package main

import (
	"net"
	"net/http"
	"sync"

	"portfolio-tracker-go/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiterMap stores rate limiters per client IP address.
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiterMap(limit float64, burst int) *rateLimiterMap {
	return &rateLimiterMap{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

func (rl *rateLimiterMap) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Cap the map so a rotating-IP client cannot grow it unbounded.
	if len(rl.limiters) > 1000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}

	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = limiter
	}
	return limiter
}

// rateLimitMiddleware rejects requests exceeding the per-client rate limit
// with 429.
func rateLimitMiddleware(cfg config.Server, next http.Handler) http.Handler {
	limiterMap := newRateLimiterMap(cfg.RateLimit, cfg.RateLimitBurst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !limiterMap.getLimiter(ip).Allow() {
			http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package intake

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipRateLimiter stores one rate.Limiter per client IP, grounded on the
// teacher's per-IP RateLimiter middleware shape — in-process rather than
// Redis-backed, since this watcher runs as a single instance per prefix
// and the Status endpoint's reads are cheap and TTL-cached already.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newIPRateLimiter(perSecond, burst int) *ipRateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = perSecond * 2
	}
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[ip] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

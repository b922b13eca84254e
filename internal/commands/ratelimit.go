package commands

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked users so a flood of distinct
// senders cannot grow the map without bound.
const maxTrackedKeys = 4096

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket. Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter allows perMinute events per key, with a burst of the same
// size. perMinute <= 0 returns nil, which allows everything.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.entries) >= maxTrackedKeys {
		// A bucket idle for a full refill is indistinguishable from a new one.
		idle := time.Duration(float64(r.burst) / float64(r.limit) * float64(time.Second))
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) >= idle {
				delete(r.entries, k)
			}
		}
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

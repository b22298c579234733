package gateway

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/verina/internal/config"
)

// maxTrackedKeys caps tracked client IPs so rotating sources cannot
// exhaust memory.
const maxTrackedKeys = 4096

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-IP request budget. The RPM is read from
// config on each request so hot reloads take effect immediately; an RPM
// of zero or below disables limiting.
type RateLimiter struct {
	cfg     *config.Config
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func NewRateLimiter(cfg *config.Config) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether a request from key fits the current budget.
func (r *RateLimiter) Allow(key string) bool {
	_, rpm := r.cfg.Snapshot()
	if rpm <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) > time.Minute {
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
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm),
		}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Middleware rejects over-budget requests with 429.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		host, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			host = req.RemoteAddr
		}
		if !r.Allow(host) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

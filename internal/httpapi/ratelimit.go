package httpapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter pairs a per-principal token bucket with its last-seen time
// so idle entries can be swept from the map.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-principal request-rate guard for the HTTP control
// plane, keyed by the authenticated subject (falling back to remote addr
// for unauthenticated requests reaching it). One token bucket per client
// avoids one noisy operator starving the rest of the fleet.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter builds a limiter allowing rps requests per second per
// client, with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[clientID]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientID] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// Sweep drops client entries idle for longer than maxIdle, bounding the
// map's growth across a long-running process. Callers run it periodically.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for id, c := range rl.clients {
		if now.Sub(c.lastSeen) > maxIdle {
			delete(rl.clients, id)
		}
	}
}

// Middleware rejects requests exceeding the per-client rate with 429, once
// a principal has already been attached to the request context by
// RequireAuth.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.RemoteAddr
		if p, ok := PrincipalFromContext(r.Context()); ok {
			clientID = p.Subject
		}
		if !rl.allow(clientID) {
			writeErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

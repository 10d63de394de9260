package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per client key. Buckets idle
// long enough to have refilled are dropped; a fresh bucket is equivalent.
type clientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(perMinute, burst int) *clientLimiters {
	if burst < 1 {
		burst = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	idle := max(time.Minute, interval*time.Duration(burst))
	return &clientLimiters{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (c *clientLimiters) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idle {
		c.sweep(now)
	}

	cl, ok := c.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (c *clientLimiters) sweep(now time.Time) {
	for key, cl := range c.clients {
		if now.Sub(cl.lastSeen) >= c.idle {
			delete(c.clients, key)
		}
	}
	c.lastSweep = now
}

// RateLimitMiddleware throttles each client to perMinute requests with the
// given burst. Logged-in callers are keyed by session, others by remote IP.
// perMinute <= 0 disables the limit.
func RateLimitMiddleware(perMinute, burst int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters := newClientLimiters(perMinute, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiters.get(key).Allow() {
				loggerFor(r).Warn().Str("client", key).Msg("rate limit exceeded")
				writeError(w, http.StatusTooManyRequests, string(apperr.KindRateLimited), "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if sess := SessionFrom(r.Context()); sess != nil {
		return "user:" + string(sess.Role) + ":" + sess.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

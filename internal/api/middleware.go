package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/questboard/scheduler/internal/api/respond"
)

// --------------------------------------------------------------------------
// Request timing middleware
// --------------------------------------------------------------------------

// Timing records handling time on the X-Process-Time header.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		ms := float64(time.Since(start).Microseconds()) / 1000.0
		w.Header().Set("X-Process-Time", strconv.FormatFloat(ms, 'f', 2, 64)+"ms")
	})
}

// --------------------------------------------------------------------------
// Rate limiting middleware (per-IP token bucket)
// --------------------------------------------------------------------------

// limiterIdleTTL bounds the per-IP map: an address idle this long is
// forgotten on the next sweep. The admin surface sees a handful of operator
// and probe IPs, so the map stays tiny in practice.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	ttl       time.Duration
	nextSweep time.Time

	now func() time.Time
}

func newIPLimiter(requestsPerWindow int, window time.Duration) *ipLimiter {
	// Small burst: the surface is health probes and one-off operator calls,
	// never legitimate request floods.
	burst := requestsPerWindow / 4
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(float64(requestsPerWindow) / window.Seconds()),
		burst:   burst,
		ttl:     limiterIdleTTL,
		now:     time.Now,
	}
}

// allow consumes one token for ip, creating its bucket on first sight and
// sweeping idle buckets so the map cannot grow without bound.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextSweep) {
		for addr, c := range l.clients {
			if now.Sub(c.lastSeen) > l.ttl {
				delete(l.clients, addr)
			}
		}
		l.nextSweep = now.Add(l.ttl)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// RateLimit returns middleware that limits each client IP to roughly
// requestsPerWindow requests per window.
func RateLimit(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	l := newIPLimiter(requestsPerWindow, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				w.Header().Set("Retry-After", retryAfter)
				respond.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

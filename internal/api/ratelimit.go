package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-IP limiter defaults and housekeeping intervals.
const (
	defaultRefillPerSec = 1.0
	defaultBurst        = 60

	limiterPruneEvery = 5 * time.Minute
	limiterIdleExpiry = 10 * time.Minute
)

// ipLimiters hands out one token bucket per client IP. Idle buckets are
// pruned as a side effect of lookups, so no background goroutine is
// needed.
type ipLimiters struct {
	refill rate.Limit
	burst  int

	mu        sync.Mutex
	buckets   map[string]*ipBucket
	nextPrune time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiters creates the per-IP limiter set. Zero or negative values
// select the defaults: 1 token per second, burst 60.
func newIPLimiters(refillPerSec float64, burst int) *ipLimiters {
	if refillPerSec <= 0 {
		refillPerSec = defaultRefillPerSec
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &ipLimiters{
		refill:    rate.Limit(refillPerSec),
		burst:     burst,
		buckets:   make(map[string]*ipBucket),
		nextPrune: time.Now().Add(limiterPruneEvery),
	}
}

// get returns the token bucket for ip, creating it on first sight and
// pruning buckets idle past the expiry.
func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.nextPrune) {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleExpiry {
				delete(l.buckets, key)
			}
		}
		l.nextPrune = now.Add(limiterPruneEvery)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.refill, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// secondsPerToken converts the refill rate into a Retry-After hint,
// rounded up to at least one second.
func secondsPerToken(r rate.Limit) string {
	if r >= 1 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(r))))
}

// rateLimitMiddleware rejects requests once a client IP drains its token
// bucket.
func rateLimitMiddleware(limiters *ipLimiters, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := secondsPerToken(limiters.refill)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !limiters.get(ip).Allow() {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP used as the limiter key.
//
// Proxy headers are consulted only when trustProxy is set, and their
// values must parse as IPs so arbitrary strings cannot become limiter
// keys. Otherwise the connection's RemoteAddr decides.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, header := range []string{"X-Real-IP", "X-Forwarded-For"} {
			raw := r.Header.Get(header)
			if raw == "" {
				continue
			}
			// X-Forwarded-For may carry a hop chain; the first entry is
			// the client.
			raw, _, _ = strings.Cut(raw, ",")
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-IP rate limiting for the call API.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second per client IP.
	Rate rate.Limit
	// Burst is the bucket size per client IP.
	Burst int
	// CleanupInterval is how often idle buckets are swept.
	CleanupInterval time.Duration
	// MaxAge is how long an idle bucket survives before eviction.
	MaxAge time.Duration
}

// DefaultRateLimitConfig allows 20 requests/second with a burst of 40,
// enough for a dashboard polling alongside an active conversation.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            rate.Limit(20),
		Burst:           40,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps a token bucket per client IP and sweeps idle
// buckets in the background.
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	entries map[string]*ipBucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		cfg:     cfg,
		entries: make(map[string]*ipBucket),
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow reports whether a request from ip fits within its bucket.
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.bucketFor(ip).Allow()
}

func (rl *IPRateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.entries[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.entries[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Stop terminates the background sweep. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup evicts buckets idle for longer than MaxAge.
func (rl *IPRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.cfg.MaxAge)
	before := len(rl.entries)
	for ip, b := range rl.entries {
		if b.lastSeen.Before(cutoff) {
			delete(rl.entries, ip)
		}
	}
	if evicted := before - len(rl.entries); evicted > 0 {
		slog.Debug("rate limiter sweep", "evicted", evicted, "remaining", len(rl.entries))
	}
}

// RateLimit rejects requests over the per-IP limit with 429 and a
// Retry-After header.
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)
			if !limiter.Allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeErrorJSON(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractIP strips the port from RemoteAddr. Run chi's RealIP middleware
// first when the server sits behind a reverse proxy.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

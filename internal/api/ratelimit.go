package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// RateLimitConfig is the request budget policy.
//
// Every request spends from its client IP's bucket. Run commands (input,
// upgrade and resize, whether posted or sent over the WebSocket) also spend
// from the target session's bucket, so one run cannot be flooded from many
// addresses.
type RateLimitConfig struct {
	RequestsPerSecond float64       // Per client IP
	Burst             int           // Per client IP
	CommandsPerSecond float64       // Per session; 0 uses the default
	CommandBurst      int           // Per session; 0 uses the default
	CleanupInterval   time.Duration // Idle buckets are dropped after twice this
}

// DefaultRateLimitConfig returns production-safe defaults.
// A held pointer sends input at display refresh rate, so the command budget
// sits above 60/s.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 30,
	Burst:             60,
	CommandsPerSecond: 120,
	CommandBurst:      240,
	CleanupInterval:   5 * time.Minute,
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	def := DefaultRateLimitConfig
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		c.RequestsPerSecond, c.Burst = def.RequestsPerSecond, def.Burst
	}
	if c.CommandsPerSecond <= 0 || c.CommandBurst <= 0 {
		c.CommandsPerSecond, c.CommandBurst = def.CommandsPerSecond, def.CommandBurst
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}

// bucketSet is a set of token buckets keyed by client IP or session id.
type bucketSet struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	allowed  atomic.Uint64
	rejected atomic.Uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newBucketSet(perSecond float64, burst int) *bucketSet {
	return &bucketSet{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (bs *bucketSet) allow(key string, now time.Time) bool {
	bs.mu.Lock()
	b, ok := bs.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(bs.limit, bs.burst)}
		bs.buckets[key] = b
	}
	b.lastSeen = now
	ok = b.limiter.AllowN(now, 1)
	bs.mu.Unlock()

	if ok {
		bs.allowed.Add(1)
	} else {
		bs.rejected.Add(1)
	}
	return ok
}

// prune drops buckets unused since cutoff and returns how many remain.
func (bs *bucketSet) prune(cutoff time.Time) int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	for key, b := range bs.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(bs.buckets, key)
		}
	}
	return len(bs.buckets)
}

func (bs *bucketSet) forget(key string) {
	bs.mu.Lock()
	delete(bs.buckets, key)
	bs.mu.Unlock()
}

// RateLimiter enforces RateLimitConfig for the HTTP API and the WebSocket.
type RateLimiter struct {
	config   RateLimitConfig
	ips      *bucketSet
	sessions *bucketSet

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	rl := &RateLimiter{
		config:   cfg,
		ips:      newBucketSet(cfg.RequestsPerSecond, cfg.Burst),
		sessions: newBucketSet(cfg.CommandsPerSecond, cfg.CommandBurst),
		stopChan: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case now := <-ticker.C:
			rl.cleanup(now)
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * rl.config.CleanupInterval)
	rl.ips.prune(cutoff)
	rl.sessions.prune(cutoff)
}

// AllowRequest spends one request from ip's budget.
func (rl *RateLimiter) AllowRequest(ip string) bool {
	return rl.ips.allow(ip, time.Now())
}

// AllowCommand spends one command from the session's budget.
func (rl *RateLimiter) AllowCommand(sessionID string) bool {
	return rl.sessions.allow(sessionID, time.Now())
}

// ForgetSession drops a removed session's budget.
func (rl *RateLimiter) ForgetSession(sessionID string) {
	rl.sessions.forget(sessionID)
}

// Middleware rejects requests over their IP budget.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowRequest(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CommandMiddleware rejects run commands over the session's budget. It must
// be mounted under a route with an {id} parameter.
func (rl *RateLimiter) CommandMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowCommand(chi.URLParam(r, "id")) {
			RecordConnectionRejected("command_rate")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too many commands for this session", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats returns rate limiter counters.
func (rl *RateLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"allowed":          rl.ips.allowed.Load(),
		"rejected":         rl.ips.rejected.Load(),
		"commandsAllowed":  rl.sessions.allowed.Load(),
		"commandsRejected": rl.sessions.rejected.Load(),
	}
}

// GetClientIP returns the address a request is budgeted under. A forwarded
// address is used only when it parses as an IP; otherwise the peer address
// is used, so junk headers cannot mint fresh budgets.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// connectionCounter caps concurrent WebSocket connections per IP.
type connectionCounter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
	rejected atomic.Uint64
}

func newConnectionCounter(maxPerIP int) *connectionCounter {
	return &connectionCounter{open: make(map[string]int), maxPerIP: maxPerIP}
}

// acquire reserves a connection slot for ip.
func (cc *connectionCounter) acquire(ip string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.open[ip] >= cc.maxPerIP {
		cc.rejected.Add(1)
		return false
	}
	cc.open[ip]++
	return true
}

// release frees a slot taken by acquire.
func (cc *connectionCounter) release(ip string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if n := cc.open[ip]; n > 1 {
		cc.open[ip] = n - 1
	} else {
		delete(cc.open, ip)
	}
}

// OriginChecker matches browser origins against patterns of the form
// "scheme://host" or "scheme://host:*" (any port).
type OriginChecker struct {
	patterns []string
}

// NewOriginChecker builds a checker for the given patterns.
func NewOriginChecker(patterns []string) *OriginChecker {
	return &OriginChecker{patterns: patterns}
}

// Allowed reports whether origin matches any pattern.
// An empty origin (non-browser client) is allowed.
func (oc *OriginChecker) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, p := range oc.patterns {
		if p == "*" || p == origin {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ":*"); ok {
			if origin == prefix || strings.HasPrefix(origin, prefix+":") {
				return true
			}
		}
	}
	return false
}

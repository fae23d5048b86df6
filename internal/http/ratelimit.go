package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/splax/tasktracker/internal/domain"
)

// rateRule is a named request budget. Buckets are keyed by rule name plus subject.
type rateRule struct {
	name   string
	limit  int
	window time.Duration
}

var (
	ruleRegister     = rateRule{name: "register", limit: 5, window: time.Minute}
	ruleLogin        = rateRule{name: "login", limit: 12, window: time.Minute}
	ruleLoginAccount = rateRule{name: "login_account", limit: 10, window: 15 * time.Minute}
	ruleRead         = rateRule{name: "read", limit: 240, window: time.Minute}
	ruleWrite        = rateRule{name: "write", limit: 60, window: time.Minute}
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter charges one hit against key and reports whether it fits in limit
// for the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

func (d rateDecision) remaining(limit int) int {
	return max(limit-d.count, 0)
}

// windowCounter is a process-local fixed-window limiter. Expired windows are
// swept inline on Allow.
type windowCounter struct {
	mu        sync.Mutex
	now       func() time.Time
	windows   map[string]*fixedWindow
	lastSweep time.Time
}

type fixedWindow struct {
	hits    int
	resetAt time.Time
}

// NewMemoryRateLimiter returns a limiter whose counters live in this process.
func NewMemoryRateLimiter() RateLimiter {
	return newWindowCounter(time.Now)
}

func newWindowCounter(now func() time.Time) *windowCounter {
	return &windowCounter{now: now, windows: make(map[string]*fixedWindow), lastSweep: now()}
}

func (c *windowCounter) Allow(_ context.Context, key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= rateLimiterSweepInterval {
		c.sweep(now)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	if w.hits >= limit {
		return rateDecision{count: w.hits, windowEnd: w.resetAt}
	}
	w.hits++
	return rateDecision{allowed: true, count: w.hits, windowEnd: w.resetAt}
}

func (c *windowCounter) sweep(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
	c.lastSweep = now
}

func (c *windowCounter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *windowCounter) Close() {
	c.mu.Lock()
	clear(c.windows)
	c.mu.Unlock()
}

// rateObserver receives the limiter verdict so the audit log can report it.
type rateObserver interface {
	observeRate(rule rateRule, decision rateDecision)
}

type rateKeyFunc func(*http.Request) string

// limit wraps next with rule, bucketing requests by keyFn.
func (r *Router) limit(rule rateRule, keyFn rateKeyFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.admit(w, req, rule, keyFn(req)) {
			return
		}
		next(w, req)
	}
}

// admit charges one request against rule for subject. It writes the 429 and
// returns false once the budget is spent.
func (r *Router) admit(w http.ResponseWriter, req *http.Request, rule rateRule, subject string) bool {
	if r.limiter == nil || rule.limit <= 0 {
		return true
	}
	if subject == "" {
		subject = remoteKey(req)
	}
	decision := r.limiter.Allow(req.Context(), rule.name+"|"+subject, rule.limit, rule.window)

	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining(rule.limit)))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
	if observer, ok := w.(rateObserver); ok {
		observer.observeRate(rule, decision)
	}
	if decision.allowed {
		return true
	}
	r.recordRateLimitHit(rule.name, subjectKind(subject))
	writeError(w, req, http.StatusTooManyRequests, "Rate limit exceeded")
	return false
}

// callerKey buckets by resolved identity and falls back to the remote address.
func callerKey(req *http.Request) string {
	if caller, ok := callerFromContext(req.Context()); ok {
		return "user:" + caller.ID
	}
	return ""
}

// remoteKey buckets by the connection's address. Forwarded headers are ignored.
func remoteKey(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// accountKey buckets by the email an unauthenticated request targets.
func accountKey(email string) string {
	key := domain.EmailKey(email)
	if key == "" {
		return ""
	}
	return "account:" + key
}

// subjectKind is the bounded metric label for a subject: ip, user or account.
func subjectKind(subject string) string {
	kind, _, ok := strings.Cut(subject, ":")
	if !ok || kind == "" {
		return "unknown"
	}
	return kind
}

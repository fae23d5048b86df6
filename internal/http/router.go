package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/tasktracker/internal/service/auth"
	"github.com/splax/tasktracker/internal/service/category"
	"github.com/splax/tasktracker/internal/service/guard"
	"github.com/splax/tasktracker/internal/service/task"
)

// Services bundles the core services the router dispatches to.
type Services struct {
	Auth       auth.Service
	Guard      guard.Guard
	Tasks      task.Service
	Categories category.Service
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	handler    http.Handler
	logger     *slog.Logger
	auth       auth.Service
	guard      guard.Guard
	tasks      task.Service
	categories category.Service
	limiter    RateLimiter
	dbHealth   func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	registry           *prometheus.Registry
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	authFailures       *prometheus.CounterVec
}

const (
	healthCheckTimeout = 2 * time.Second
	maxBodyBytes       = 1 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, services Services, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		auth:       services.Auth,
		guard:      services.Guard,
		tasks:      services.Tasks,
		categories: services.Categories,
		limiter:    limiter,
		dbHealth:   dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	r.handler = middleware.RequestID(middleware.Recoverer(r.mux))
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.handle("GET /api/ping", r.handlePing)
	r.mux.Handle("GET /metrics", r.metricsHandler())

	r.handle("POST /auth/register", r.limit(ruleRegister, remoteKey, r.handleRegister))
	r.handle("POST /auth/login", r.limit(ruleLogin, remoteKey, r.handleLogin))

	r.handle("GET /api/users/me", r.read(r.handleProfile))
	r.handle("PUT /api/users/me", r.write(r.handleUpdateProfile))
	r.handle("PUT /api/users/me/password", r.write(r.handleChangePassword))

	r.handle("GET /api/admin/users", r.read(r.handleAdminUsers))
	r.handle("GET /api/admin/tasks", r.read(r.handleAdminTasks))

	r.handle("GET /api/category", r.read(r.handleListCategories))
	r.handle("POST /api/category", r.write(r.handleCreateCategory))
	r.handle("PUT /api/category/{id}", r.write(r.handleUpdateCategory))
	r.handle("DELETE /api/category/{id}", r.write(r.handleDeleteCategory))

	r.handle("GET /api/tasks", r.read(r.handleListTasks))
	r.handle("POST /api/tasks", r.write(r.handleCreateTask))
	r.handle("GET /api/tasks/filter", r.read(r.handleFilterTasks))
	r.handle("GET /api/tasks/paged", r.read(r.handlePagedTasks))
	r.handle("GET /api/tasks/{id}", r.read(r.handleGetTask))
	r.handle("PUT /api/tasks/{id}", r.write(r.handleUpdateTask))
	r.handle("DELETE /api/tasks/{id}", r.write(r.handleDeleteTask))
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	_, route, _ := strings.Cut(pattern, " ")
	r.mux.HandleFunc(pattern, r.audit(route, h))
}

func (r *Router) read(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limit(ruleRead, callerKey, next))
}

func (r *Router) write(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limit(ruleWrite, callerKey, next))
}

func (r *Router) handlePing(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	code := http.StatusOK
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			components["database"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "ok"}
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "components": components})
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := middleware.GetReqID(req.Context()); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if caller, ok := callerFromContext(ctx); ok {
			fields = append(fields, "identity_id", caller.ID, "actor", "user")
		} else {
			fields = append(fields, "actor", "anonymous")
		}
		if recorder.rateRule != "" {
			fields = append(fields,
				"rate_rule", recorder.rateRule,
				"rate_remaining", recorder.rateRemaining,
				"rate_limited", recorder.rateLimited,
			)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context

	rateRule      string
	rateRemaining int
	rateLimited   bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

// observeRate keeps the last limiter verdict; a denial always ends the chain.
func (sr *statusRecorder) observeRate(rule rateRule, decision rateDecision) {
	sr.rateRule = rule.name
	sr.rateRemaining = decision.remaining(rule.limit)
	sr.rateLimited = !decision.allowed
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

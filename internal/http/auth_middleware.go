package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/tasktracker/internal/domain"
)

type authContextKey string

const contextKeyCaller authContextKey = "tasktracker-caller"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the caller from the bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		r.recordAuthFailure("bearer", "missing_token")
		writeError(w, req, http.StatusUnauthorized, "Authentication required")
		return req.Context(), false
	}
	caller, err := r.guard.ResolveCaller(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrIdentityNotFound) {
			r.recordAuthFailure("bearer", "invalid_token")
			writeError(w, req, http.StatusUnauthorized, "Authentication failed")
			return req.Context(), false
		}
		writeServiceError(w, req, err)
		return req.Context(), false
	}
	return context.WithValue(req.Context(), contextKeyCaller, caller), true
}

// callerFromContext extracts the resolved caller.
func callerFromContext(ctx context.Context) (*domain.Identity, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(*domain.Identity)
	return caller, ok && caller != nil
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

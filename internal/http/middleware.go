package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/ewaste-pickup/internal/guard"
	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/observability"
	"github.com/example/ewaste-pickup/internal/session"
)

type contextKey string

const (
	requestIDKey contextKey = "request-id"
	profileKey   contextKey = "profile"
)

func (s *Server) registerMiddleware() {
	s.mux.Use(s.recoverMiddleware)
	s.mux.Use(s.requestIDMiddleware)
	s.mux.Use(s.observabilityMiddleware)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePath := routeTemplate(r)
		status := strconv.Itoa(ww.status)

		observability.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, routePath, status).Observe(time.Since(start).Seconds())

		args := []any{
			"method", r.Method,
			"route", routePath,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", remoteIP(r),
		}
		if rid := requestIDFromContext(r.Context()); rid != "" {
			args = append(args, "request_id", rid)
		}
		s.logger.Info("http_request", args...)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "error", rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireRole resolves the caller's bearer token into a session
// snapshot and applies the access rules. Redirect decisions translate
// to 401/403 on an API surface.
func (s *Server) requireRole(role models.Role, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.resolveSession(r)
		switch guard.Evaluate(snap, role) {
		case guard.Allow:
			// Role-less routes reach Allow with any identity, but a
			// failed profile resolution must not hand handlers a nil
			// profile; surface it as retryable instead.
			if snap.Profile == nil {
				writeError(w, http.StatusServiceUnavailable, "profile resolution unavailable")
				return
			}
			ctx := context.WithValue(r.Context(), profileKey, snap.Profile)
			h(w, r.WithContext(ctx))
		case guard.RedirectLogin:
			writeError(w, http.StatusUnauthorized, "authentication required")
		case guard.RedirectUnauthorized:
			writeError(w, http.StatusForbidden, "insufficient role")
		default:
			// Profile resolution failed; the client may retry.
			writeError(w, http.StatusServiceUnavailable, "profile resolution unavailable")
		}
	}
}

// resolveSession builds a settled snapshot from the request's bearer
// token. No token means signed out; a token that cannot be resolved
// keeps the identity but no profile, which the guard turns into a
// retryable state for role-gated routes.
func (s *Server) resolveSession(r *http.Request) session.Snapshot {
	token := bearerToken(r)
	if token == "" {
		return session.Snapshot{}
	}
	profile, err := s.profiles.Resolve(r.Context(), token)
	if err != nil {
		return session.Snapshot{User: &session.Identity{}, Token: token, ProfileErr: err}
	}
	return session.Snapshot{
		User:    &session.Identity{UID: profile.UID},
		Profile: profile,
		Token:   token,
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func profileFromContext(ctx context.Context) *models.UserProfile {
	if p, ok := ctx.Value(profileKey).(*models.UserProfile); ok {
		return p
	}
	return nil
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (r *responseWriter) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func remoteIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

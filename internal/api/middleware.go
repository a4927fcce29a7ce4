package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/types"
)

type sessionUserKey struct{}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("http request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecoveryMiddleware recovers from panics and returns 500 error.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.GetGlobalLogger().WithField("panic", err).Error("recovered from panic")
				respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal server error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware adds CORS headers to responses.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-auth-key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns an empty string when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// requireAPIKey rejects requests missing the static x-auth-key header.
// Applied to write paths reachable without a session.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-auth-key") != s.apiKey {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid or missing API key", nil)
			return
		}
		next(w, r)
	}
}

// requireSession validates the bearer token and stores the session user in
// the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.sessions.Validate(r.Context(), bearerToken(r))
		if err != nil {
			status, code, message := mapServiceError(err)
			respondError(w, status, code, message, nil)
			return
		}
		if !result.Valid {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, result.Message, nil)
			return
		}

		ctx := context.WithValue(r.Context(), sessionUserKey{}, result.User)
		next(w, r.WithContext(ctx))
	}
}

// sessionUserFromContext returns the authenticated user set by requireSession
func sessionUserFromContext(ctx context.Context) *types.SessionUser {
	user, _ := ctx.Value(sessionUserKey{}).(*types.SessionUser)
	return user
}

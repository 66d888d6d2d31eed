package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"corebank/internal/token"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/requestcontext"
)

// TokenValidator validates bearer tokens into claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*token.Claims, error)
}

// RequestTime captures the current time at the start of the request so every
// operation within it shares one "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID assigns a correlation ID to each request and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs one line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}

// Recovery converts panics into 500 responses.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"panic", rec,
						"path", r.URL.Path,
					)
					writeError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth validates the bearer token and installs the (actor, role) pair
// into the request context. Everything under /api runs behind it.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			const bearerPrefix = "Bearer "
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeError(w, err)
				return
			}

			actor, err := id.ParseUserID(claims.UserID)
			if err != nil {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
				return
			}
			role, err := id.ParseRole(claims.Role)
			if err != nil {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token role"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actor)
			ctx = requestcontext.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

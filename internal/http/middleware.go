package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/fellowship-api/internal/application"
)

// UserResolver turns an asserted user id into a verified account.
type UserResolver interface {
	GetUser(ctx context.Context, id string) (application.User, error)
}

// RequireUser resolves the X-User-ID header against the user directory
// and attaches the resulting principal to the request context. Requests
// without a resolvable user are rejected with 401.
func RequireUser(users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if userID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingUserID)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				if errors.Is(err, application.ErrNotFound) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "unknown user"})
					return
				}
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "user lookup failed"})
				return
			}

			ctx := ContextWithPrincipal(r.Context(), application.Principal{UserID: user.ID, Email: user.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger carrying a generated
// request id and logs start and completion of every request.
func RequestLogger(base *slog.Logger, requestID func() string) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	if requestID == nil {
		requestID = func() string { return "" }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", requestID(),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}

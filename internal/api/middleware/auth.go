package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the admin key on management requests.
const AdminKeyHeader = "X-Admin-Key"

type contextKey string

// AdminContextKey marks requests that presented a valid admin key.
const AdminContextKey contextKey = "admin"

// IsAdmin reports whether the request was authenticated by AdminAuth.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(AdminContextKey).(bool)
	return ok
}

// AdminAuth guards registration and membership routes with a bcrypt hash
// of the admin key. With an empty hash every request passes, which is only
// allowed outside production.
func AdminAuth(hash string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := adminKey(r)
			if key == "" {
				jsonError(w, http.StatusUnauthorized, "missing admin key")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				logger.Warn().
					Str("type", "security").
					Str("event", "admin_auth_failed").
					Str("ip", RealIP(r)).
					Str("endpoint", r.URL.Path).
					Msg("invalid admin key")
				jsonError(w, http.StatusUnauthorized, "invalid admin key")
				return
			}
			ctx := context.WithValue(r.Context(), AdminContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminKey(r *http.Request) string {
	if key := r.Header.Get(AdminKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

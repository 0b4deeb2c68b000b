package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/auth"
)

// BearerAuth returns middleware that validates Authorization: Bearer session
// tokens on the admin surface. When required is false all requests pass
// through; the admin surface historically ran open and enforcement is
// opt-in.
func BearerAuth(tokens *auth.Tokens, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"success":false,"message":"Missing session token"}`, http.StatusUnauthorized)
				return
			}

			if _, err := tokens.Validate(tokenString); err != nil {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, `{"success":false,"message":"Invalid session token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

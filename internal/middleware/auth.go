package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/stagebox/service/internal/auth"
	"github.com/stagebox/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// ClientKey is the context key for the authenticated client's subject.
const ClientKey contextKey = "client"

// RequireAuth returns middleware that validates a Bearer JWT and injects
// the token subject into the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			subject, err := auth.Verify(jwtSecret, parts[1])
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ClientKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Client returns the authenticated subject, or "" when the request was not
// authenticated.
func Client(ctx context.Context) string {
	s, _ := ctx.Value(ClientKey).(string)
	return s
}

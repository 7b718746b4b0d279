// README: Firebase bearer-token auth middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"saferide/internal/infra"
)

type ctxKey struct{}

var callerKey = ctxKey{}

// Caller is the authenticated identity placed on the request context.
type Caller struct {
	UID  string
	Role string
}

// Auth verifies the Authorization bearer token with Firebase and rejects the
// request when missing or invalid.
func Auth(verifier infra.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "authorization header must be a bearer token", http.StatusUnauthorized)
				return
			}
			token, err := verifier.VerifyIDToken(r.Context(), raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			caller := Caller{UID: token.UID}
			if role, ok := token.Claims["role"].(string); ok {
				caller.Role = role
			}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

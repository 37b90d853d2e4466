package middleware

import (
	"context"
	"net/http"
	"strings"

	"social-auth-service/internal/http/response"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/security"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// Authenticate is the gate on protected routes. A missing bearer token is
// 401; a token that is present but unverifiable or expired is 403, telling
// the client to take the refresh path rather than re-authenticate. Valid
// claims are trusted as-is for the access token's short lifetime; there is
// no store lookup here.
func Authenticate(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordAccessTokenValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid")
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid or expired access token", nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

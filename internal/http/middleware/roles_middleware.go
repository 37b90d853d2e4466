package middleware

import (
	"net/http"

	"social-auth-service/internal/http/response"
	"social-auth-service/internal/service"
)

// RequireRoles authorizes the request identity against a required role set.
// Any non-empty intersection passes.
func RequireRoles(rbac service.RoleAuthorizer, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			if !rbac.HasAnyRole(claims.Roles, allowed...) {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role", map[string]any{"required": allowed})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

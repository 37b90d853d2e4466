package handler

import (
	"net/http"

	"social-auth-service/internal/http/middleware"
	"social-auth-service/internal/http/response"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler { return &UserHandler{} }

// Me echoes the decoded identity attached by the authorization gate. No
// store lookup: the claims are the identity for the token's lifetime.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user_id":  claims.Subject,
		"username": claims.Username,
		"roles":    claims.Roles,
	})
}

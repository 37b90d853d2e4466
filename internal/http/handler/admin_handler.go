package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"social-auth-service/internal/http/response"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/service"
)

type AdminHandler struct {
	auth service.AuthServiceInterface
}

func NewAdminHandler(auth service.AuthServiceInterface) *AdminHandler {
	return &AdminHandler{auth: auth}
}

// DeactivateUser soft-deletes an account: the record and owned content stay,
// every live session is revoked. Reversible via ActivateUser.
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.auth.Deactivate(r.Context(), id); err != nil {
		writeAdminError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.deactivate", "target_user_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.auth.Activate(r.Context(), id); err != nil {
		writeAdminError(w, r, err)
		return
	}
	observability.Audit(r, "admin.user.activate", "target_user_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "activated"})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id", nil)
		return 0, false
	}
	return uint(id), true
}

func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrUserNotFound) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "request failed", nil)
}

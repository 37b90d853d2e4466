package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"social-auth-service/internal/http/response"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
	"social-auth-service/internal/service"
)

type AuthHandler struct {
	auth      service.AuthServiceInterface
	tokens    service.TokenServiceInterface
	cookieTTL time.Duration
}

func NewAuthHandler(auth service.AuthServiceInterface, tokens service.TokenServiceInterface, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, cookieTTL: cookieTTL}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	Roles       []string `json:"roles"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "identifier and password are required", nil)
		return
	}

	staleCookie := security.GetCookie(r, security.RefreshCookieName)
	result, err := h.auth.Login(r.Context(), req.Identifier, req.Password, staleCookie)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	observability.Audit(r, "auth.login", "user_id", result.User.ID)
	security.SetRefreshCookie(w, result.Tokens.RefreshToken, h.cookieTTL)
	response.JSON(w, r, http.StatusOK, tokenResponse{
		AccessToken: result.Tokens.AccessToken,
		Roles:       result.Tokens.Roles,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := security.GetCookie(r, security.RefreshCookieName)
	if presented == "" {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh cookie", nil)
		return
	}

	pair, err := h.tokens.Rotate(r.Context(), presented)
	if err != nil {
		if errors.Is(err, service.ErrRefreshTokenReuseDetected) {
			observability.Audit(r, "auth.refresh.reuse_detected")
		}
		security.ClearRefreshCookie(w)
		h.writeAuthError(w, r, err)
		return
	}

	security.SetRefreshCookie(w, pair.RefreshToken, h.cookieTTL)
	response.JSON(w, r, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		Roles:       pair.Roles,
	})
}

// Logout always succeeds, including for a cookie that was already removed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	presented := security.GetCookie(r, security.RefreshCookieName)
	if presented != "" {
		if err := h.tokens.Logout(r.Context(), presented); err != nil {
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
			return
		}
	}
	security.ClearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if details := validateRegistration(req); len(details) > 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid registration payload", details)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			response.Error(w, r, http.StatusConflict, "CONFLICT", "username or email already taken", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		return
	}

	observability.Audit(r, "auth.register", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func validateRegistration(req registerRequest) map[string]string {
	details := map[string]string{}
	if len(req.Username) < 3 || len(req.Username) > 12 {
		details["username"] = "must be 3-12 characters"
	}
	if len(req.Email) < 5 || !strings.Contains(req.Email, "@") {
		details["email"] = "must be a valid email address"
	}
	if len(req.Password) < 8 {
		details["password"] = "must be at least 8 characters"
	}
	return details
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "token is required", nil)
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "email is required", nil)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), strings.TrimSpace(strings.ToLower(req.Email))); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "request failed", nil)
		return
	}
	// Accepted regardless of whether the address exists.
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "token and password are required", nil)
		return
	}
	if len(req.Password) < 8 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters", nil)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "reset"})
}

// writeAuthError maps service errors onto the wire taxonomy. Reused and
// malformed refresh tokens produce byte-identical responses; nothing here
// distinguishes detection from garbage.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "access denied, check your credentials", nil)
	case errors.Is(err, service.ErrAccountInactive):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "account is inactive", nil)
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "email address not verified", nil)
	case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrRefreshTokenReuseDetected):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid refresh token", nil)
	case errors.Is(err, service.ErrInvalidActionToken):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid or expired token", nil)
	case errors.Is(err, service.ErrLoginCooldown):
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many failed attempts", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "request failed", nil)
	}
}

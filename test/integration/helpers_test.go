package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/health"
	"social-auth-service/internal/http/handler"
	"social-auth-service/internal/http/router"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
	"social-auth-service/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// capturedMail records outbound mail so tests can pull action tokens out of
// the flows that would normally deliver them by email.
type capturedMail struct {
	mu           sync.Mutex
	verifyTokens map[string]string
	resetTokens  map[string]string
}

func (m *capturedMail) SendVerificationMail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens[email] = token
	return nil
}

func (m *capturedMail) SendPasswordResetMail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[email] = token
	return nil
}

func (m *capturedMail) SendCompromiseNotice(ctx context.Context, email string) error { return nil }

func (m *capturedMail) verifyToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyTokens[email]
}

type authTestEnv struct {
	baseURL string
	client  *http.Client
	jwtMgr  *security.JWTManager
	users   repository.UserRepository
	mail    *capturedMail
}

func newAuthTestServer(t *testing.T) *authTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jwtMgr := security.NewJWTManager(
		"iss",
		"aud",
		"abcdefghijklmnopqrstuvwxyz123456",
		"abcdefghijklmnopqrstuvwxyz654321",
	)
	users := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	mail := &capturedMail{verifyTokens: map[string]string{}, resetTokens: map[string]string{}}

	tokens := service.NewTokenService(jwtMgr, refreshRepo, users, nil, mail, "pepper-1234567890", 5*time.Minute, 20*time.Minute)
	auth := service.NewAuthService(users, tokens, nil, mail, 24*time.Hour, time.Hour)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(auth, tokens, 20*time.Minute),
		UserHandler:      handler.NewUserHandler(),
		AdminHandler:     handler.NewAdminHandler(auth),
		JWTManager:       jwtMgr,
		RBACService:      service.NewRBACService(),
		APIRateLimitRPM:  10000,
		AuthRateLimitRPM: 10000,
		Readiness:        health.NewProbeRunner(2*time.Second, health.NewDatabaseChecker(db)),
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &authTestEnv{
		baseURL: srv.URL,
		client:  srv.Client(),
		jwtMgr:  jwtMgr,
		users:   users,
		mail:    mail,
	}
}

type requestOptions struct {
	accessToken string
	cookies     []*http.Cookie
}

func (e *authTestEnv) doJSON(t *testing.T, method, path string, body any, opts requestOptions) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.accessToken)
	}
	for _, c := range opts.cookies {
		req.AddCookie(c)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", raw, err)
		}
	}
	return resp, env
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == security.RefreshCookieName {
			return c
		}
	}
	t.Fatal("expected a refresh_token cookie")
	return nil
}

type tokenData struct {
	AccessToken string   `json:"access_token"`
	Roles       []string `json:"roles"`
}

func decodeTokens(t *testing.T, env envelope) tokenData {
	t.Helper()
	var data tokenData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode token payload: %v", err)
	}
	return data
}

// registerAndVerify walks the register + email-verification flow and returns
// nothing; the account is ready to log in afterwards.
func (e *authTestEnv) registerAndVerify(t *testing.T, username, email, password string) {
	t.Helper()

	resp, env := e.doJSON(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, requestOptions{})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d success=%v", resp.StatusCode, env.Success)
	}

	token := e.mail.verifyToken(email)
	if token == "" {
		t.Fatal("no verification mail captured")
	}
	resp, env = e.doJSON(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"token": token,
	}, requestOptions{})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("verify-email failed: status=%d success=%v", resp.StatusCode, env.Success)
	}
}

func (e *authTestEnv) login(t *testing.T, identifier, password string) (tokenData, *http.Cookie) {
	t.Helper()
	resp, env := e.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, requestOptions{})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d success=%v", resp.StatusCode, env.Success)
	}
	return decodeTokens(t, env), refreshCookie(t, resp)
}

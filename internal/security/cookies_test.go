package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetRefreshCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRefreshCookie(rec, "raw-token", 20*time.Minute)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != RefreshCookieName || c.Value != "raw-token" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteNoneMode {
		t.Fatal("cookie must be HttpOnly, Secure and SameSite=None")
	}
	if c.Path != "/api/v1/auth" {
		t.Fatalf("cookie path = %q", c.Path)
	}
	if c.MaxAge != int((20 * time.Minute).Seconds()) {
		t.Fatalf("cookie max-age = %d", c.MaxAge)
	}
}

func TestClearRefreshCookieExpiresImmediately(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearRefreshCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Fatalf("clear cookie max-age = %d, want negative", cookies[0].MaxAge)
	}
}

func TestGetCookieMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	if v := GetCookie(r, RefreshCookieName); v != "" {
		t.Fatalf("expected empty value, got %q", v)
	}
}

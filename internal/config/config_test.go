package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("db driver = %q", cfg.DatabaseDriver)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("access ttl = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 20*time.Minute {
		t.Fatalf("refresh ttl = %v", cfg.RefreshTokenTTL)
	}
	if cfg.RotationGrace != 0 {
		t.Fatalf("rotation grace = %v, want strict default", cfg.RotationGrace)
	}
	// Local profile fills in development secrets.
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		t.Fatal("local profile must default the token secrets")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		t.Fatal("token secrets must differ")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("ACCESS_TOKEN_TTL", "90s")
	t.Setenv("REFRESH_TOKEN_TTL", "45m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("AUTH_RATE_LIMIT_RPM", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 90*time.Second || cfg.RefreshTokenTTL != 45*time.Minute {
		t.Fatalf("ttls = %v / %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
	if cfg.AuthRateLimitRPM != 12 {
		t.Fatalf("auth rate limit = %d", cfg.AuthRateLimitRPM)
	}
}

func TestLoadRejectsShortSecretOutsideLocal(t *testing.T) {
	t.Setenv("APP_PROFILE", "production")
	t.Setenv("ACCESS_TOKEN_SECRET", "short")
	t.Setenv("REFRESH_TOKEN_SECRET", "abcdefghijklmnopqrstuvwxyz654321")
	t.Setenv("REFRESH_TOKEN_PEPPER", "pepper")

	if _, err := Load(); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestLoadRejectsIdenticalSecrets(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("REFRESH_TOKEN_SECRET", "abcdefghijklmnopqrstuvwxyz123456")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected identical-secret rejection, got %v", err)
	}
}

func TestLoadRejectsRefreshTTLBelowAccessTTL(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("REFRESH_TOKEN_TTL", "5m")

	if _, err := Load(); err == nil {
		t.Fatal("expected refresh ttl <= access ttl to be rejected")
	}
}

func TestLoadRejectsGraceWithoutRedis(t *testing.T) {
	t.Setenv("AUTH_ROTATION_GRACE", "30s")

	if _, err := Load(); err == nil {
		t.Fatal("expected rotation grace without redis to be rejected")
	}

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with redis: %v", err)
	}
	if cfg.RotationGrace != 30*time.Second {
		t.Fatalf("rotation grace = %v", cfg.RotationGrace)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown driver to be rejected")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "five minutes")

	if _, err := Load(); err == nil {
		t.Fatal("expected malformed duration to be rejected")
	}
}

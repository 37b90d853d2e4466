package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Profile  string
	HTTPAddr string

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string

	JWTIssuer          string
	JWTAudience        string
	AccessTokenSecret  string
	RefreshTokenSecret string
	RefreshTokenPepper string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RotationGrace suppresses full-session revocation when an
	// already-rotated token is re-presented within the window. Zero means
	// strict: any unknown well-signed refresh token revokes every live
	// session for the claimed account.
	RotationGrace time.Duration

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	CORSOrigins      []string
	APIRateLimitRPM  int
	AuthRateLimitRPM int

	OTELEnabled               bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Profile:  getEnv("APP_PROFILE", "local"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseDriver: getEnv("DB_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("DB_DSN", "file:social-auth.db?cache=shared"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTIssuer:          getEnv("JWT_ISSUER", "social-auth-service"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "social-app"),
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		RefreshTokenPepper: os.Getenv("REFRESH_TOKEN_PEPPER"),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "social-auth-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "local"),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 20*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RotationGrace, err = getDuration("AUTH_ROTATION_GRACE", 0); err != nil {
		return nil, err
	}
	if cfg.VerifyTokenTTL, err = getDuration("VERIFY_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPM, err = getInt("API_RATE_LIMIT_RPM", 600); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = getInt("AUTH_RATE_LIMIT_RPM", 60); err != nil {
		return nil, err
	}
	if cfg.OTELEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Profile == "local" {
		if c.AccessTokenSecret == "" {
			c.AccessTokenSecret = "local-access-secret-0123456789ab"
		}
		if c.RefreshTokenSecret == "" {
			c.RefreshTokenSecret = "local-refresh-secret-0123456789a"
		}
		if c.RefreshTokenPepper == "" {
			c.RefreshTokenPepper = "local-pepper"
		}
	}
	if len(c.AccessTokenSecret) < 32 {
		return fmt.Errorf("ACCESS_TOKEN_SECRET must be at least 32 bytes")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return fmt.Errorf("REFRESH_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.RefreshTokenPepper == "" {
		return fmt.Errorf("REFRESH_TOKEN_PEPPER is required")
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL must exceed access token TTL")
	}
	if c.RotationGrace < 0 {
		return fmt.Errorf("AUTH_ROTATION_GRACE must not be negative")
	}
	if c.RotationGrace > 0 && c.RedisAddr == "" {
		return fmt.Errorf("AUTH_ROTATION_GRACE requires REDIS_ADDR")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

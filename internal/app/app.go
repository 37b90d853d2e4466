package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"social-auth-service/internal/config"
	"social-auth-service/internal/domain"
	"social-auth-service/internal/health"
	"social-auth-service/internal/http/handler"
	"social-auth-service/internal/http/router"
	"social-auth-service/internal/mailer"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
	"social-auth-service/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	db          *gorm.DB
	redisClient *redis.Client
	refreshRepo repository.RefreshTokenRepository
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	mail := mailer.NewLogMailer(logger)

	var tombstones service.RotationTombstones
	var abuseGuard service.AuthAbuseGuard
	if redisClient != nil {
		tombstones = service.NewRedisRotationTombstones(redisClient, "", cfg.RotationGrace)
		abuseGuard = service.NewRedisAuthAbuseGuard(redisClient, "", service.AuthAbusePolicy{
			FreeAttempts: 3,
			BaseDelay:    2 * time.Second,
			Multiplier:   2,
			MaxDelay:     5 * time.Minute,
			ResetWindow:  15 * time.Minute,
		})
	}

	tokenSvc := service.NewTokenService(jwtMgr, refreshRepo, userRepo, tombstones, mail, cfg.RefreshTokenPepper, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := service.NewAuthService(userRepo, tokenSvc, abuseGuard, mail, cfg.VerifyTokenTTL, cfg.ResetTokenTTL)

	checkers := []health.Checker{health.NewDatabaseChecker(db)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc, tokenSvc, cfg.RefreshTokenTTL),
		UserHandler:      handler.NewUserHandler(),
		AdminHandler:     handler.NewAdminHandler(authSvc),
		JWTManager:       jwtMgr,
		RBACService:      service.NewRBACService(),
		CORSOrigins:      cfg.CORSOrigins,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:        health.NewProbeRunner(2*time.Second, checkers...),
		EnableOTelHTTP:   cfg.OTELEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		db:            db,
		redisClient:   redisClient,
		refreshRepo:   refreshRepo,
	}, nil
}

// Run serves until the context is cancelled or a termination signal arrives,
// then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.runExpiredTokenSweep(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runExpiredTokenSweep deletes expired refresh-token rows periodically.
// Expired rows are already unusable; this only keeps the table small.
func (a *App) runExpiredTokenSweep(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.refreshRepo.DeleteExpired()
			if err != nil {
				a.Logger.Warn("expired token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.Logger.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}

func (a *App) Close(ctx context.Context) error {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return a.Observability.Shutdown(ctx)
}

func (a *App) DB() *gorm.DB { return a.db }

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	}
}

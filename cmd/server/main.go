package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"social-auth-service/internal/app"
	"social-auth-service/internal/config"
	"social-auth-service/internal/domain"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "social-auth-service",
		Short:         "Credential and session lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before config")
	cmd.AddCommand(newServeCommand(&envFile))
	cmd.AddCommand(newSeedCommand(&envFile))
	return cmd
}

func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return config.Load()
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, logger, runtime)
			if err != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = runtime.Shutdown(shutdownCtx)
				return err
			}

			runErr := a.Run(ctx)

			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				logger.Warn("shutdown cleanup failed", "error", err)
			}
			return runErr
		},
	}
}

// newSeedCommand creates or updates the bootstrap administrator, holding all
// three role tags. Safe to run repeatedly.
func newSeedCommand(envFile *string) *cobra.Command {
	var (
		username string
		email    string
		password string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("--password is required")
			}

			logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, logger, runtime)
			if err != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = runtime.Shutdown(shutdownCtx)
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(closeCtx)
			}()

			hash, err := security.HashPassword(password)
			if err != nil {
				return err
			}

			users := repository.NewUserRepository(a.DB())
			user, err := users.FindByIdentifier(username)
			switch err {
			case nil:
				user.PasswordHash = hash
				user.Roles = []string{domain.RoleLevel1, domain.RoleLevel2, domain.RoleLevel3}
				user.Active = true
				user.EmailVerified = true
				user.DeletedAt = nil
				if err := users.Save(user); err != nil {
					return err
				}
				logger.Info("admin account updated", "user_id", user.ID, "username", username)
			case repository.ErrUserNotFound:
				user = &domain.User{
					Username:      username,
					Email:         email,
					PasswordHash:  hash,
					Roles:         []string{domain.RoleLevel1, domain.RoleLevel2, domain.RoleLevel3},
					Active:        true,
					EmailVerified: true,
				}
				if err := users.Create(user); err != nil {
					return err
				}
				logger.Info("admin account created", "user_id", user.ID, "username", username)
			default:
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&email, "email", "admin@localhost", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password (required)")
	return cmd
}

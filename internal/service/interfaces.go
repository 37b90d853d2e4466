package service

import (
	"context"

	"social-auth-service/internal/domain"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, identifier, password, staleRefreshToken string) (*LoginResult, error)
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Deactivate(ctx context.Context, userID uint) error
	Activate(ctx context.Context, userID uint) error
}

type TokenServiceInterface interface {
	IssueOnLogin(ctx context.Context, user *domain.User, staleRefreshToken string) (*TokenPair, error)
	Rotate(ctx context.Context, presented string) (*TokenPair, error)
	Logout(ctx context.Context, presented string) error
	RevokeAll(ctx context.Context, userID uint, reason string) (int64, error)
}

// RoleAuthorizer decides whether a set of held role tags satisfies a
// required set. Tags are flat; no tag implies another.
type RoleAuthorizer interface {
	HasAnyRole(held []string, allowed ...string) bool
}

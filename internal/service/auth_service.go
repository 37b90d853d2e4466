package service

import (
	"context"
	"time"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/mailer"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
)

type LoginResult struct {
	User   *domain.User
	Tokens *TokenPair
}

type AuthService struct {
	users      repository.UserRepository
	tokens     TokenServiceInterface
	abuseGuard AuthAbuseGuard
	mail       mailer.Mailer
	verifyTTL  time.Duration
	resetTTL   time.Duration
}

func NewAuthService(
	users repository.UserRepository,
	tokens TokenServiceInterface,
	abuseGuard AuthAbuseGuard,
	mail mailer.Mailer,
	verifyTTL, resetTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		abuseGuard: abuseGuard,
		mail:       mail,
		verifyTTL:  verifyTTL,
		resetTTL:   resetTTL,
	}
}

// guardAccountState enforces the login preconditions shared by password
// login and refresh. Each failure carries a distinct reason.
func guardAccountState(user *domain.User) error {
	if !user.Active || user.DeletedAt != nil {
		return ErrAccountInactive
	}
	if !user.EmailVerified {
		return ErrEmailNotVerified
	}
	return nil
}

// Login verifies identifier+password, runs the account-state guard, and on
// success issues a fresh token pair. Credential failures are reported
// identically for unknown identifier and wrong password.
func (s *AuthService) Login(ctx context.Context, identifier, password, staleRefreshToken string) (*LoginResult, error) {
	if s.abuseGuard != nil {
		cooldown, err := s.abuseGuard.Check(ctx, AuthAbuseScopeLogin, identifier)
		if err == nil && cooldown > 0 {
			observability.RecordAuthLogin("cooldown")
			return nil, ErrLoginCooldown
		}
	}

	user, err := s.users.FindByIdentifier(identifier)
	if err != nil {
		if err == repository.ErrUserNotFound {
			s.registerLoginFailure(ctx, identifier)
			observability.RecordAuthLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.VerifyPassword(user.PasswordHash, password) {
		s.registerLoginFailure(ctx, identifier)
		observability.RecordAuthLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if err := guardAccountState(user); err != nil {
		observability.RecordAuthLogin("account_state")
		return nil, err
	}

	pair, err := s.tokens.IssueOnLogin(ctx, user, staleRefreshToken)
	if err != nil {
		return nil, err
	}
	if s.abuseGuard != nil {
		_ = s.abuseGuard.Reset(ctx, AuthAbuseScopeLogin, identifier)
	}
	observability.RecordAuthLogin("success")
	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) registerLoginFailure(ctx context.Context, identifier string) {
	if s.abuseGuard == nil {
		return
	}
	_, _ = s.abuseGuard.RegisterFailure(ctx, AuthAbuseScopeLogin, identifier)
}

// Register creates an account with the default role tag and sends a
// verification link. The account cannot log in until the link is confirmed.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	verifyToken, err := security.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	tokenHash := security.HashActionToken(verifyToken)
	expires := time.Now().Add(s.verifyTTL)

	user := &domain.User{
		Username:             username,
		Email:                email,
		PasswordHash:         hash,
		Roles:                []string{domain.RoleLevel1},
		Active:               true,
		VerifyTokenHash:      &tokenHash,
		VerifyTokenExpiresAt: &expires,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	if s.mail != nil {
		_ = s.mail.SendVerificationMail(ctx, email, verifyToken)
	}
	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.FindByVerifyTokenHash(security.HashActionToken(token))
	if err != nil {
		if err == repository.ErrUserNotFound {
			return ErrInvalidActionToken
		}
		return err
	}
	user.EmailVerified = true
	user.VerifyTokenHash = nil
	user.VerifyTokenExpiresAt = nil
	return s.users.Save(user)
}

// ForgotPassword always reports success to the caller so the endpoint does
// not reveal which addresses exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByIdentifier(email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil
		}
		return err
	}
	resetToken, err := security.NewOpaqueToken()
	if err != nil {
		return err
	}
	tokenHash := security.HashActionToken(resetToken)
	expires := time.Now().Add(s.resetTTL)
	user.ResetTokenHash = &tokenHash
	user.ResetTokenExpiresAt = &expires
	if err := s.users.Save(user); err != nil {
		return err
	}
	if s.mail != nil {
		_ = s.mail.SendPasswordResetMail(ctx, user.Email, resetToken)
	}
	return nil
}

// ResetPassword sets a new password and revokes every live session; any
// stolen refresh token dies with the old credential.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.FindByResetTokenHash(security.HashActionToken(token))
	if err != nil {
		if err == repository.ErrUserNotFound {
			return ErrInvalidActionToken
		}
		return err
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetTokenHash = nil
	user.ResetTokenExpiresAt = nil
	if err := s.users.Save(user); err != nil {
		return err
	}
	_, err = s.tokens.RevokeAll(ctx, user.ID, "password_reset")
	return err
}

// Deactivate is the soft-delete path: the record and owned content survive,
// sessions do not. Hard delete cascades through the content layer and is not
// implemented here.
func (s *AuthService) Deactivate(ctx context.Context, userID uint) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	now := time.Now()
	user.Active = false
	user.DeletedAt = &now
	if err := s.users.Save(user); err != nil {
		return err
	}
	_, err = s.tokens.RevokeAll(ctx, userID, "deactivated")
	return err
}

func (s *AuthService) Activate(ctx context.Context, userID uint) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	user.Active = true
	user.DeletedAt = nil
	return s.users.Save(user)
}

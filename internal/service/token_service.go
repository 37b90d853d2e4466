package service

import (
	"context"
	"strconv"
	"time"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/mailer"
	"social-auth-service/internal/observability"
	"social-auth-service/internal/repository"
	"social-auth-service/internal/security"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Roles        []string
}

// TokenService owns the per-user refresh-token collection and the rotation
// protocol. All reads and mutations of the collection go through the
// repository's conditional remove, never through read-modify-write in
// application memory.
type TokenService struct {
	jwtMgr      *security.JWTManager
	refreshRepo repository.RefreshTokenRepository
	userRepo    repository.UserRepository
	tombstones  RotationTombstones
	mail        mailer.Mailer
	pepper      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewTokenService(
	jwtMgr *security.JWTManager,
	refreshRepo repository.RefreshTokenRepository,
	userRepo repository.UserRepository,
	tombstones RotationTombstones,
	mail mailer.Mailer,
	pepper string,
	accessTTL, refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		jwtMgr:      jwtMgr,
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		tombstones:  tombstones,
		mail:        mail,
		pepper:      pepper,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueOnLogin mints a fresh access/refresh pair and appends the refresh
// token to the user's collection. A stale refresh cookie carried into the
// login request is removed first so a re-login does not strand a live row;
// other devices' tokens are untouched.
func (s *TokenService) IssueOnLogin(ctx context.Context, user *domain.User, staleRefreshToken string) (*TokenPair, error) {
	if staleRefreshToken != "" {
		if _, _, err := s.refreshRepo.Remove(security.HashRefreshToken(staleRefreshToken, s.pepper)); err != nil {
			return nil, err
		}
	}
	return s.mint(ctx, user)
}

// Rotate exchanges a presented refresh token for a new access/refresh pair.
//
// The presented token is removed from its owner's collection before its
// signature is even checked, so a second concurrent presentation of the same
// token can never rotate twice. A well-signed token that is absent from every
// collection was either rotated out and replayed or stolen; both cases revoke
// the claimed owner's entire session set.
func (s *TokenService) Rotate(ctx context.Context, presented string) (*TokenPair, error) {
	hash := security.HashRefreshToken(presented, s.pepper)
	ownerID, outcome, err := s.refreshRepo.Remove(hash)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case repository.RemoveLostRace:
		// A concurrent presentation of the same live token won the
		// conditional delete. That is a double-submission, not a replay of a
		// rotated-out token, so the loser is denied without touching the rest
		// of the owner's sessions.
		observability.RecordAuthRefresh("lost_rotation_race")
		return nil, ErrInvalidRefreshToken
	case repository.RemoveMissing:
		return nil, s.handleUnknownToken(ctx, presented, hash)
	}

	if s.tombstones != nil {
		// Mark before verification: a concurrent duplicate of this request
		// must find the tombstone no matter how verification goes.
		if err := s.tombstones.MarkRotated(ctx, hash); err != nil {
			observability.RecordAuthRefresh("tombstone_error")
		}
	}

	claims, perr := s.jwtMgr.ParseRefreshToken(presented)
	if perr != nil {
		// Expired or otherwise invalid but known: the removal stays
		// persisted, and an expired member is not a compromise signal.
		observability.RecordAuthRefresh("expired")
		return nil, ErrInvalidRefreshToken
	}
	claimedID, perr := parseSubject(claims.Subject)
	if perr != nil || claimedID != ownerID {
		observability.RecordAuthRefresh("subject_mismatch")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ownerID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if gerr := guardAccountState(user); gerr != nil {
		observability.RecordAuthRefresh("account_state")
		return nil, gerr
	}

	pair, err := s.mint(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return pair, nil
}

func (s *TokenService) handleUnknownToken(ctx context.Context, presented, hash string) error {
	claims, perr := s.jwtMgr.ParseRefreshToken(presented)
	if perr != nil {
		// Bad signature or expired: not a legitimate ex-member token, just
		// garbage. No revocation.
		observability.RecordAuthRefresh("invalid")
		return ErrInvalidRefreshToken
	}
	if s.tombstones != nil {
		seen, terr := s.tombstones.Seen(ctx, hash)
		if terr != nil {
			// Store unavailable: abort the request rather than guess. Falling
			// through would turn a graced client retry into a full revocation.
			observability.RecordAuthRefresh("tombstone_error")
			return terr
		}
		if seen {
			// Rotated out moments ago, almost certainly a client retry that
			// lost the race. Deny without nuking the account's sessions.
			observability.RecordAuthRefresh("lost_rotation_race")
			return ErrInvalidRefreshToken
		}
	}
	claimedID, perr := parseSubject(claims.Subject)
	if perr != nil {
		observability.RecordAuthRefresh("invalid")
		return ErrInvalidRefreshToken
	}
	n, err := s.refreshRepo.RemoveAllForUser(claimedID)
	if err != nil {
		return err
	}
	observability.RecordAuthRefresh("reuse_detected")
	observability.RecordTokenReuseDetected(ctx)
	observability.RecordSessionsRevoked(ctx, "reuse_detected", n)
	if s.mail != nil {
		if owner, uerr := s.userRepo.FindByID(claimedID); uerr == nil {
			_ = s.mail.SendCompromiseNotice(ctx, owner.Email)
		}
	}
	return ErrRefreshTokenReuseDetected
}

// Logout removes the presented token from its owner's collection. It
// succeeds whether or not the token was present.
func (s *TokenService) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}
	_, _, err := s.refreshRepo.Remove(security.HashRefreshToken(presented, s.pepper))
	if err != nil {
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

func (s *TokenService) RevokeAll(ctx context.Context, userID uint, reason string) (int64, error) {
	n, err := s.refreshRepo.RemoveAllForUser(userID)
	if err != nil {
		return 0, err
	}
	observability.RecordSessionsRevoked(ctx, reason, n)
	return n, nil
}

func (s *TokenService) mint(ctx context.Context, user *domain.User) (*TokenPair, error) {
	refresh, err := s.jwtMgr.SignRefreshToken(user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Username, user.Roles, s.accessTTL)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRepo.Add(&domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: security.HashRefreshToken(refresh, s.pepper),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, Roles: user.Roles}, nil
}

func parseSubject(subject string) (uint, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

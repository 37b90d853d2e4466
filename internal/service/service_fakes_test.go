package service

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/repository"
)

// startMiniredis boots an in-process redis and a client wired to it. The
// server's lifetime is tied to the test by RunT; only the client needs
// explicit teardown.
func startMiniredis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

type inMemoryRefreshTokenRepo struct {
	mu     sync.Mutex
	nextID uint
	byHash map[string]*domain.RefreshToken
	// beforeDelete, when set, runs between the lookup and the conditional
	// delete inside Remove, outside the lock. Tests use it to hold two
	// removers in the window where both have read the same row.
	beforeDelete func()
}

func newInMemoryRefreshTokenRepo() *inMemoryRefreshTokenRepo {
	return &inMemoryRefreshTokenRepo{nextID: 1, byHash: map[string]*domain.RefreshToken{}}
}

func (r *inMemoryRefreshTokenRepo) Add(token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	cp.ID = r.nextID
	r.nextID++
	r.byHash[cp.TokenHash] = &cp
	return nil
}

// Remove mirrors the two-step shape of the real repository: read the row,
// then delete conditionally, so two concurrent callers can both read the same
// row and exactly one wins the delete.
func (r *inMemoryRefreshTokenRepo) Remove(hash string) (uint, repository.RemoveOutcome, error) {
	r.mu.Lock()
	row, ok := r.byHash[hash]
	r.mu.Unlock()
	if !ok {
		return 0, repository.RemoveMissing, nil
	}
	if r.beforeDelete != nil {
		r.beforeDelete()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, still := r.byHash[hash]; !still {
		return row.UserID, repository.RemoveLostRace, nil
	}
	delete(r.byHash, hash)
	return row.UserID, repository.Removed, nil
}

func (r *inMemoryRefreshTokenRepo) RemoveAllForUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, row := range r.byHash {
		if row.UserID == userID {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *inMemoryRefreshTokenRepo) CountForUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.byHash {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryRefreshTokenRepo) DeleteExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for hash, row := range r.byHash {
		if !row.ExpiresAt.After(now) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *inMemoryRefreshTokenRepo) contains(hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byHash[hash]
	return ok
}

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByIdentifier(identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == identifier || u.Email == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindByVerifyTokenHash(hash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, u := range r.byID {
		if u.VerifyTokenHash != nil && *u.VerifyTokenHash == hash &&
			u.VerifyTokenExpiresAt != nil && u.VerifyTokenExpiresAt.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindByResetTokenHash(hash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, u := range r.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash &&
			u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	r.nextID++
	cp := *user
	r.byID[cp.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) Save(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *user
	r.byID[cp.ID] = &cp
	return nil
}

type capturingMailer struct {
	mu                sync.Mutex
	verifyTokens      map[string]string
	resetTokens       map[string]string
	compromiseNotices []string
}

func newCapturingMailer() *capturingMailer {
	return &capturingMailer{verifyTokens: map[string]string{}, resetTokens: map[string]string{}}
}

func (m *capturingMailer) SendVerificationMail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens[email] = token
	return nil
}

func (m *capturingMailer) SendPasswordResetMail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[email] = token
	return nil
}

func (m *capturingMailer) SendCompromiseNotice(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compromiseNotices = append(m.compromiseNotices, email)
	return nil
}

func (m *capturingMailer) compromiseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.compromiseNotices)
}

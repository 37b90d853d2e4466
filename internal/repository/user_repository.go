package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/observability"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already taken")
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByIdentifier(identifier string) (*domain.User, error)
	FindByVerifyTokenHash(hash string) (*domain.User, error)
	FindByResetTokenHash(hash string) (*domain.User, error)
	Create(user *domain.User) error
	Save(user *domain.User) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

// FindByIdentifier matches the login identifier against username or email.
func (r *GormUserRepository) FindByIdentifier(identifier string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("username = ? OR email = ?", identifier, identifier).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_identifier", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_identifier", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_identifier", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByVerifyTokenHash(hash string) (*domain.User, error) {
	return r.findByTokenColumn("verify_token_hash", "verify_token_expires_at", hash)
}

func (r *GormUserRepository) FindByResetTokenHash(hash string) (*domain.User, error) {
	return r.findByTokenColumn("reset_token_hash", "reset_token_expires_at", hash)
}

func (r *GormUserRepository) findByTokenColumn(hashColumn, expiryColumn, hash string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where(hashColumn+" = ? AND "+expiryColumn+" > ?", hash, time.Now()).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_"+hashColumn, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_"+hashColumn, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_"+hashColumn, "success")
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		if isDuplicateKey(err) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "conflict")
			return ErrDuplicateUser
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Save(user *domain.User) error {
	err := r.db.Save(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "save", "success")
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

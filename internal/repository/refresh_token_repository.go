package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"social-auth-service/internal/domain"
	"social-auth-service/internal/observability"
)

// RemoveOutcome reports how a conditional remove resolved. The distinction
// between RemoveLostRace and RemoveMissing matters: a lost race means the row
// existed when this call read it and a concurrent caller deleted it first,
// which is a double-submission of a live token, not a replay of a long-gone
// one.
type RemoveOutcome int

const (
	// RemoveMissing: no row carried the hash when this call looked.
	RemoveMissing RemoveOutcome = iota
	// RemoveLostRace: the row was read but a concurrent remove won the
	// conditional delete.
	RemoveLostRace
	// Removed: this call deleted the row.
	Removed
)

// RefreshTokenRepository owns the per-user refresh-token collection. Every
// mutation of the collection goes through here, and Remove is the atomic
// update boundary of the rotation protocol.
type RefreshTokenRepository interface {
	Add(token *domain.RefreshToken) error
	// Remove deletes the row whose hash matches, if any, and reports the
	// owner. Under two concurrent calls with the same hash exactly one
	// observes Removed; the DELETE on the unique hash column is the single
	// decision point, and the loser sees RemoveLostRace.
	Remove(hash string) (userID uint, outcome RemoveOutcome, err error)
	RemoveAllForUser(userID uint) (int64, error)
	CountForUser(userID uint) (int64, error)
	DeleteExpired() (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Add(token *domain.RefreshToken) error {
	err := r.db.Create(token).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "add", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "add", "success")
	return nil
}

func (r *GormRefreshTokenRepository) Remove(hash string) (uint, RemoveOutcome, error) {
	var row domain.RefreshToken
	err := r.db.Where("token_hash = ?", hash).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove", "not_found")
			return 0, RemoveMissing, nil
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove", "error")
		return 0, RemoveMissing, err
	}
	// The conditional delete on the unique hash decides the winner; a
	// concurrent caller that read the same row deletes zero rows here.
	res := r.db.Where("token_hash = ?", hash).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove", "error")
		return 0, RemoveMissing, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove", "lost_race")
		return row.UserID, RemoveLostRace, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove", "success")
	return row.UserID, Removed, nil
}

func (r *GormRefreshTokenRepository) RemoveAllForUser(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove_all_for_user", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "remove_all_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) CountForUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&domain.RefreshToken{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "count_for_user", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "count_for_user", "success")
	return n, nil
}

func (r *GormRefreshTokenRepository) DeleteExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_expired", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "delete_expired", "success")
	return res.RowsAffected, nil
}

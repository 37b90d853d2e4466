package domain

import "time"

// RefreshToken is one live device session. The raw token string is never
// stored; TokenHash is its peppered SHA-256. The set of rows for a user is
// the account's refresh-token collection, and membership of a presented
// token is decided by hash equality against exactly one row.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

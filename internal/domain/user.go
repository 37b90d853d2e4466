package domain

import "time"

// Role tags are flat capability strings. An admin account simply holds all
// three tags at once; no tag implies another.
const (
	RoleLevel1 = "level1"
	RoleLevel2 = "level2"
	RoleLevel3 = "level3"
)

type User struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Username     string   `gorm:"size:32;uniqueIndex;not null" json:"username"`
	Email        string   `gorm:"size:128;uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"size:128;not null" json:"-"`
	Roles        []string `gorm:"serializer:json" json:"roles"`

	Active        bool       `gorm:"not null;default:true" json:"active"`
	EmailVerified bool       `gorm:"not null;default:false" json:"email_verified"`
	DeletedAt     *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	VerifyTokenHash      *string    `gorm:"size:128;index" json:"-"`
	VerifyTokenExpiresAt *time.Time `json:"-"`
	ResetTokenHash       *string    `gorm:"size:128;index" json:"-"`
	ResetTokenExpiresAt  *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) HasRole(tag string) bool {
	for _, r := range u.Roles {
		if r == tag {
			return true
		}
	}
	return false
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the canonical phone-verified identity entity.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string     `gorm:"type:text;not null;uniqueIndex"`
	Phone         *string    `gorm:"column:phone;uniqueIndex"`
	FullName      string     `gorm:"column:full_name;not null;default:''"`
	PhoneVerified bool       `gorm:"column:phone_verified;not null;default:false"`
	EmailVerified bool       `gorm:"column:email_verified;not null;default:false"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt   *time.Time `gorm:"column:last_login_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an ID when the database default cannot, e.g. sqlite.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasRealEmail reports whether the account carries a user-supplied address
// rather than the placeholder derived from the phone number at signup.
func (u User) HasRealEmail() bool {
	return u.Email != "" && !isDerivedPhoneEmail(u.Email)
}

func isDerivedPhoneEmail(email string) bool {
	const suffix = "@phone.auth"
	return len(email) > len(suffix) && email[len(email)-len(suffix):] == suffix
}

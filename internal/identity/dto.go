package identity

import (
	"github.com/google/uuid"

	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
)

// CreateUserDTO carries the fields needed to provision a phone-verified user.
type CreateUserDTO struct {
	Phone    string
	FullName string
}

// ToModel maps the DTO to the persistence model. Phone signups get the
// derived placeholder email and start out verified on both channels, since
// the OTP exchange already proved control of the number.
func (d CreateUserDTO) ToModel() *models.User {
	phone := d.Phone
	return &models.User{
		Email:         DerivedEmail(d.Phone),
		Phone:         &phone,
		FullName:      d.FullName,
		PhoneVerified: true,
		EmailVerified: true,
		IsActive:      true,
	}
}

// UserSummary is the public shape of a user returned by auth endpoints.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Phone    string    `json:"phone"`
	FullName string    `json:"full_name"`
}

// SignInResult is what a completed phone verification yields.
type SignInResult struct {
	UserID       uuid.UUID `json:"user_id"`
	IsNewUser    bool      `json:"is_new_user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// FromModel converts a persistence model into the API summary.
func FromModel(user *models.User) UserSummary {
	summary := UserSummary{
		ID:       user.ID,
		FullName: user.FullName,
	}
	if user.Phone != nil {
		summary.Phone = *user.Phone
	}
	return summary
}

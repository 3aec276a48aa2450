package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
)

// Repository exposes identity persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an identity repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByPhone looks up a user by phone number, trying the E.164 form, the
// form without the leading plus, and the derived placeholder email. Accounts
// created through older clients stored the number in different shapes.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	bare := strings.TrimPrefix(phone, "+")
	derived := DerivedEmail(phone)

	var user models.User
	err := r.db.WithContext(ctx).
		Where("phone = ? OR phone = ? OR email = ?", phone, bare, derived).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new phone-verified user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// DerivedEmail builds the placeholder address used when a phone-only signup
// has no real email: the digits of the number followed by "@phone.auth".
func DerivedEmail(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return digits + "@phone.auth"
}

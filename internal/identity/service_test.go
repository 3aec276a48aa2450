package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shreesanatan/pujapath-backend/pkg/auth"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
)

func setupIdentityTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  phone TEXT UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  phone_verified INTEGER NOT NULL DEFAULT 0,
  email_verified INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(users).Error)
	return conn
}

type fakeSessionManager struct {
	generated []string
	err       error
}

func (f *fakeSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.generated = append(f.generated, accessID)
	return "refresh-" + accessID, nil
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return assert.AnError
	}
	r.events = append(r.events, event)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-1234",
		Issuer:            "pujapath-test",
		ExpirationMinutes: 15,
	}
}

func newTestService(t *testing.T, conn *gorm.DB) (Service, *fakeSessionManager, *recordingEmitter) {
	t.Helper()

	sessions := &fakeSessionManager{}
	emitter := &recordingEmitter{}
	svc, err := NewService(ServiceParams{
		Runner:         db.NewFromConn(conn),
		Repo:           NewRepository(conn),
		SessionManager: sessions,
		Events:         emitter,
		JWTConfig:      testJWTConfig(),
	})
	require.NoError(t, err)
	return svc, sessions, emitter
}

func TestSignInWithPhoneCreatesNewUser(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, sessions, emitter := newTestService(t, conn)

	result, err := svc.SignInWithPhone(context.Background(), "+919876543210", "Asha Rao")
	require.NoError(t, err)

	assert.True(t, result.IsNewUser)
	assert.NotEqual(t, uuid.Nil, result.UserID)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "refresh-"+sessions.generated[0], result.RefreshToken)

	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", result.UserID).Error)
	assert.Equal(t, "919876543210@phone.auth", user.Email)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+919876543210", *user.Phone)
	assert.Equal(t, "Asha Rao", user.FullName)
	assert.True(t, user.PhoneVerified)
	assert.NotNil(t, user.LastLoginAt)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventUserVerified, emitter.events[0].EventType)
	assert.Equal(t, enums.AggregateUser, emitter.events[0].AggregateType)
	assert.Equal(t, result.UserID, emitter.events[0].AggregateID)

	claims, err := auth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.UserID, claims.UserID)
	assert.Equal(t, "+919876543210", claims.Phone)
}

func TestSignInWithPhoneExistingUser(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, _, emitter := newTestService(t, conn)

	phone := "+919876543210"
	seeded := &models.User{
		ID:       uuid.New(),
		Email:    "asha@example.com",
		Phone:    &phone,
		FullName: "Asha Rao",
		IsActive: true,
	}
	require.NoError(t, conn.Create(seeded).Error)

	result, err := svc.SignInWithPhone(context.Background(), phone, "Different Name")
	require.NoError(t, err)

	assert.False(t, result.IsNewUser)
	assert.Equal(t, seeded.ID, result.UserID)
	assert.Empty(t, emitter.events)

	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", seeded.ID).Error)
	assert.Equal(t, "Asha Rao", user.FullName)
	assert.NotNil(t, user.LastLoginAt)
}

func TestSignInWithPhoneMatchesBareNumber(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, _, _ := newTestService(t, conn)

	bare := "919876543210"
	seeded := &models.User{
		ID:       uuid.New(),
		Email:    "legacy@example.com",
		Phone:    &bare,
		IsActive: true,
	}
	require.NoError(t, conn.Create(seeded).Error)

	result, err := svc.SignInWithPhone(context.Background(), "+919876543210", "")
	require.NoError(t, err)
	assert.False(t, result.IsNewUser)
	assert.Equal(t, seeded.ID, result.UserID)
}

func TestSignInWithPhoneMatchesDerivedEmail(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, _, _ := newTestService(t, conn)

	seeded := &models.User{
		ID:       uuid.New(),
		Email:    "919876543210@phone.auth",
		IsActive: true,
	}
	require.NoError(t, conn.Create(seeded).Error)

	result, err := svc.SignInWithPhone(context.Background(), "+919876543210", "")
	require.NoError(t, err)
	assert.False(t, result.IsNewUser)
	assert.Equal(t, seeded.ID, result.UserID)
}

func TestSignInWithPhoneDisabledAccount(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, _, _ := newTestService(t, conn)

	phone := "+919876543210"
	require.NoError(t, conn.Create(&models.User{
		ID:       uuid.New(),
		Email:    "blocked@example.com",
		Phone:    &phone,
		IsActive: false,
	}).Error)

	_, err := svc.SignInWithPhone(context.Background(), phone, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestSignInWithPhoneTruncatesLongNames(t *testing.T) {
	conn := setupIdentityTestDB(t)
	svc, _, _ := newTestService(t, conn)

	longName := strings.Repeat("a", 450)
	result, err := svc.SignInWithPhone(context.Background(), "+919876543210", longName)
	require.NoError(t, err)

	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", result.UserID).Error)
	assert.Len(t, user.FullName, 200)
}

func TestDerivedEmail(t *testing.T) {
	assert.Equal(t, "919876543210@phone.auth", DerivedEmail("+919876543210"))
	assert.Equal(t, "919876543210@phone.auth", DerivedEmail("919876543210"))
}

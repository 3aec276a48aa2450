package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgAuth "github.com/shreesanatan/pujapath-backend/pkg/auth"
	"github.com/shreesanatan/pujapath-backend/pkg/auth/session"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	"github.com/shreesanatan/pujapath-backend/pkg/db"
	"github.com/shreesanatan/pujapath-backend/pkg/db/models"
	"github.com/shreesanatan/pujapath-backend/pkg/enums"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/outbox"
)

const maxFullNameLength = 200

// Service resolves verified phone numbers into signed-in accounts.
type Service interface {
	SignInWithPhone(ctx context.Context, phone, fullName string) (*SignInResult, error)
}

type service struct {
	runner  txRunner
	repo    *Repository
	session sessionManager
	events  eventEmitter
	jwtCfg  config.JWTConfig
	logg    *logger.Logger
	now     func() time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build an identity service.
type ServiceParams struct {
	Runner         txRunner
	Repo           *Repository
	SessionManager sessionManager
	Events         eventEmitter
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

// NewService constructs the sign-in service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("identity repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		runner:  params.Runner,
		repo:    params.Repo,
		session: params.SessionManager,
		events:  params.Events,
		jwtCfg:  params.JWTConfig,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// SignInWithPhone finds or creates the account for a phone number that just
// passed verification and issues a token pair for it.
func (s *service) SignInWithPhone(ctx context.Context, phone, fullName string) (*SignInResult, error) {
	fullName = sanitizeFullName(fullName)

	user, isNew, err := s.resolveUser(ctx, phone, fullName)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}

	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Phone:  phone,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":     user.ID.String(),
			"phone":       logger.MaskPhone(phone),
			"is_new_user": isNew,
		})
		s.logg.Info(logCtx, "phone sign-in completed")
	}

	return &SignInResult{
		UserID:       user.ID,
		IsNewUser:    isNew,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *service) resolveUser(ctx context.Context, phone, fullName string) (*models.User, bool, error) {
	user, err := s.repo.FindByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	var created *models.User
	txErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var cErr error
		created, cErr = NewRepository(tx).Create(ctx, CreateUserDTO{Phone: phone, FullName: fullName})
		if cErr != nil {
			return cErr
		}
		if s.events == nil {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserVerified,
			AggregateType: enums.AggregateUser,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: created.ID, Phone: logger.MaskPhone(phone)},
			Data: map[string]any{
				"user_id": created.ID.String(),
				"phone":   phone,
			},
			Version: 1,
		})
	})
	if txErr == nil {
		return created, true, nil
	}

	// Two first-time verifications can race on the same number; the loser of
	// the unique index re-reads and signs into the winner's account.
	if db.IsUniqueViolation(txErr, "") {
		existing, findErr := s.repo.FindByPhone(ctx, phone)
		if findErr != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "resolve concurrent signup")
		}
		return existing, false, nil
	}
	return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "create user")
}

func sanitizeFullName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxFullNameLength {
		name = name[:maxFullNameLength]
	}
	return name
}

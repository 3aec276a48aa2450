package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shreesanatan/pujapath-backend/internal/identity"
	"github.com/shreesanatan/pujapath-backend/pkg/config"
	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
	"github.com/shreesanatan/pujapath-backend/pkg/logger"
	"github.com/shreesanatan/pujapath-backend/pkg/metrics"
)

// Indian mobile numbers in E.164 form.
var phonePattern = regexp.MustCompile(`^\+91[6-9]\d{9}$`)

// Service drives the phone verification flow.
type Service interface {
	Request(ctx context.Context, req RequestOTPRequest) (*RequestOTPResponse, error)
	Verify(ctx context.Context, req VerifyOTPRequest) (*identity.SignInResult, error)
}

type service struct {
	store    challengeStore
	sender   smsSender
	identity identitySignIn
	metrics  *metrics.StorefrontMetrics
	cfg      config.OTPConfig
	logg     *logger.Logger
	now      func() time.Time
}

type challengeStore interface {
	PutChallenge(ctx context.Context, phone, code string, expiresAt time.Time) error
	GetChallenge(ctx context.Context, phone string) (*Challenge, error)
	IncrementAttempts(ctx context.Context, phone string) (int64, error)
	DeleteChallenge(ctx context.Context, phone string) error
	SendCount(ctx context.Context, phone string) (int64, error)
	RecordSend(ctx context.Context, phone string, window time.Duration) (int64, error)
	SendRetryAfter(ctx context.Context, phone string) (time.Duration, error)
	Lock(ctx context.Context, phone string, duration time.Duration) error
	LockTTL(ctx context.Context, phone string) (time.Duration, error)
	ClearSendState(ctx context.Context, phone string) error
}

type smsSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
}

type identitySignIn interface {
	SignInWithPhone(ctx context.Context, phone, fullName string) (*identity.SignInResult, error)
}

// ServiceParams bundles the dependencies required to build the OTP service.
type ServiceParams struct {
	Store    challengeStore
	Sender   smsSender
	Identity identitySignIn
	Metrics  *metrics.StorefrontMetrics
	Config   config.OTPConfig
	Logger   *logger.Logger
}

// NewService constructs the verification service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("sms sender is required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	return &service{
		store:    params.Store,
		sender:   params.Sender,
		identity: params.Identity,
		metrics:  params.Metrics,
		cfg:      params.Config,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Request generates and dispatches a fresh code, replacing any pending one.
func (s *service) Request(ctx context.Context, req RequestOTPRequest) (*RequestOTPResponse, error) {
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if err := s.checkLock(ctx, phone); err != nil {
		s.metrics.IncOTPSend("locked")
		return nil, err
	}

	count, err := s.store.SendCount(ctx, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read send counter")
	}
	if count >= int64(s.cfg.SendLimit) {
		retryAfter, ttlErr := s.store.SendRetryAfter(ctx, phone)
		if ttlErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ttlErr, "read send window ttl")
		}
		s.metrics.IncOTPSend("throttled")
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested").
			WithDetails(map[string]any{"retry_after_seconds": ceilSeconds(retryAfter)})
	}

	code, err := generateCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	expiresAt := s.now().UTC().Add(s.cfg.CodeTTL)
	if err := s.store.PutChallenge(ctx, phone, code, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store challenge")
	}
	if _, err := s.store.RecordSend(ctx, phone, s.cfg.SendWindow); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record send")
	}

	if err := s.sender.SendVerificationCode(ctx, phone, code); err != nil {
		s.metrics.IncOTPSend("delivery_failed")
		if s.logg != nil {
			logCtx := s.logg.WithPhone(ctx, phone)
			s.logg.Error(logCtx, "verification sms dispatch failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDeliveryFailed, err, "send verification sms")
	}

	s.metrics.IncOTPSend("sent")
	if s.logg != nil {
		logCtx := s.logg.WithPhone(ctx, phone)
		s.logg.Info(logCtx, "verification code sent")
	}
	return &RequestOTPResponse{Sent: true}, nil
}

// Verify checks the submitted code and, on a match, signs the phone in.
func (s *service) Verify(ctx context.Context, req VerifyOTPRequest) (*identity.SignInResult, error) {
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code is required")
	}

	if err := s.checkLock(ctx, phone); err != nil {
		s.metrics.IncOTPVerification("locked")
		return nil, err
	}

	challenge, err := s.store.GetChallenge(ctx, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load challenge")
	}
	if challenge == nil {
		s.metrics.IncOTPVerification("not_found")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no verification pending, request a code first")
	}
	if s.now().UTC().After(challenge.ExpiresAt) {
		_ = s.store.DeleteChallenge(ctx, phone)
		s.metrics.IncOTPVerification("expired")
		return nil, pkgerrors.New(pkgerrors.CodeOTPExpired, "verification code expired")
	}
	if challenge.Attempts >= int64(s.cfg.MaxVerifyAttempts) {
		return nil, s.lockOut(ctx, phone)
	}

	if code != challenge.Code {
		attempts, incErr := s.store.IncrementAttempts(ctx, phone)
		if incErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, incErr, "record failed attempt")
		}
		if attempts >= int64(s.cfg.MaxVerifyAttempts) {
			return nil, s.lockOut(ctx, phone)
		}
		s.metrics.IncOTPVerification("invalid_code")
		remaining := int64(s.cfg.MaxVerifyAttempts) - attempts
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCode, "verification code does not match").
			WithDetails(map[string]any{"attempts_remaining": remaining})
	}

	if err := s.store.DeleteChallenge(ctx, phone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear challenge")
	}
	if err := s.store.ClearSendState(ctx, phone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear send state")
	}

	result, err := s.identity.SignInWithPhone(ctx, phone, req.FullName)
	if err != nil {
		return nil, err
	}
	s.metrics.IncOTPVerification("verified")
	return result, nil
}

func (s *service) checkLock(ctx context.Context, phone string) error {
	ttl, err := s.store.LockTTL(ctx, phone)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read lockout")
	}
	if ttl <= 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeRateLimit, "too many failed attempts, phone temporarily locked").
		WithDetails(map[string]any{"retry_after_seconds": ceilSeconds(ttl)})
}

func (s *service) lockOut(ctx context.Context, phone string) error {
	if err := s.store.Lock(ctx, phone, s.cfg.LockoutDuration); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply lockout")
	}
	_ = s.store.DeleteChallenge(ctx, phone)
	s.metrics.IncOTPVerification("locked")
	return pkgerrors.New(pkgerrors.CodeRateLimit, "too many failed attempts, phone temporarily locked").
		WithDetails(map[string]any{"retry_after_seconds": ceilSeconds(s.cfg.LockoutDuration)})
}

func normalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if !phonePattern.MatchString(phone) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must be an Indian mobile number in +91 format")
	}
	return phone, nil
}

// generateCode draws a uniform six digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

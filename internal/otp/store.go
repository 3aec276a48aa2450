package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	fieldCode      = "code"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"

	// Challenges outlive their validity window so an expired code can be
	// reported as expired rather than never-requested.
	challengeGrace = 10 * time.Minute
)

type redisCommands interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	HSet(ctx context.Context, key string, values ...any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	PTTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
	OTPChallengeKey(phone string) string
	OTPSendCounterKey(phone string) string
	OTPLockKey(phone string) string
}

// Challenge is the pending verification state for one phone number.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int64
}

// Store keeps OTP challenges, send counters and lockout markers in Redis.
type Store struct {
	redis redisCommands
}

func NewStore(redis redisCommands) *Store {
	return &Store{redis: redis}
}

// PutChallenge replaces any existing challenge for the phone with a fresh one.
func (s *Store) PutChallenge(ctx context.Context, phone, code string, expiresAt time.Time) error {
	key := s.redis.OTPChallengeKey(phone)
	if err := s.redis.Del(ctx, key); err != nil {
		return fmt.Errorf("clearing previous challenge: %w", err)
	}
	err := s.redis.HSet(ctx, key,
		fieldCode, code,
		fieldExpiresAt, strconv.FormatInt(expiresAt.Unix(), 10),
		fieldAttempts, "0",
	)
	if err != nil {
		return fmt.Errorf("storing challenge: %w", err)
	}
	ttl := time.Until(expiresAt) + challengeGrace
	if err := s.redis.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("setting challenge ttl: %w", err)
	}
	return nil
}

// GetChallenge returns the active challenge, or nil when none exists.
func (s *Store) GetChallenge(ctx context.Context, phone string) (*Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, s.redis.OTPChallengeKey(phone))
	if err != nil {
		return nil, fmt.Errorf("loading challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	expiresUnix, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing challenge expiry: %w", err)
	}
	attempts, _ := strconv.ParseInt(fields[fieldAttempts], 10, 64)
	return &Challenge{
		Code:      fields[fieldCode],
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
		Attempts:  attempts,
	}, nil
}

// IncrementAttempts bumps the failed-verification counter and returns the new total.
func (s *Store) IncrementAttempts(ctx context.Context, phone string) (int64, error) {
	return s.redis.HIncrBy(ctx, s.redis.OTPChallengeKey(phone), fieldAttempts, 1)
}

func (s *Store) DeleteChallenge(ctx context.Context, phone string) error {
	return s.redis.Del(ctx, s.redis.OTPChallengeKey(phone))
}

// SendCount returns how many codes were dispatched in the current window.
func (s *Store) SendCount(ctx context.Context, phone string) (int64, error) {
	value, err := s.redis.Get(ctx, s.redis.OTPSendCounterKey(phone))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("loading send counter: %w", err)
	}
	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing send counter: %w", err)
	}
	return count, nil
}

// RecordSend increments the send counter, starting the window on the first send.
func (s *Store) RecordSend(ctx context.Context, phone string, window time.Duration) (int64, error) {
	return s.redis.IncrWithTTL(ctx, s.redis.OTPSendCounterKey(phone), window)
}

// SendRetryAfter reports how long until the send window resets.
func (s *Store) SendRetryAfter(ctx context.Context, phone string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.redis.OTPSendCounterKey(phone))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Lock marks the phone as locked out for the given duration.
func (s *Store) Lock(ctx context.Context, phone string, duration time.Duration) error {
	return s.redis.Set(ctx, s.redis.OTPLockKey(phone), "1", duration)
}

// LockTTL returns the remaining lockout, zero when the phone is not locked.
func (s *Store) LockTTL(ctx context.Context, phone string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.redis.OTPLockKey(phone))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ClearSendState removes the send counter and lockout after a successful verification.
func (s *Store) ClearSendState(ctx context.Context, phone string) error {
	return s.redis.Del(ctx, s.redis.OTPSendCounterKey(phone), s.redis.OTPLockKey(phone))
}

package otp

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	strings map[string]string
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.strings[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.strings[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...any) error {
	hash, ok := f.hashes[key]
	if !ok {
		hash = map[string]string{}
		f.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		hash[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return nil
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) (map[string]string, error) {
	hash := f.hashes[key]
	out := map[string]string{}
	for k, v := range hash {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	hash, ok := f.hashes[key]
	if !ok {
		hash = map[string]string{}
		f.hashes[key] = hash
	}
	current, _ := strconv.ParseInt(hash[field], 10, 64)
	current += incr
	hash[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (f *fakeRedis) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	current, _ := strconv.ParseInt(f.strings[key], 10, 64)
	current++
	f.strings[key] = strconv.FormatInt(current, 10)
	if current == 1 {
		f.ttls[key] = ttl
	}
	return current, nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) PTTL(_ context.Context, key string) (time.Duration, error) {
	_, inStrings := f.strings[key]
	_, inHashes := f.hashes[key]
	if !inStrings && !inHashes {
		return -2 * time.Millisecond, nil
	}
	ttl, ok := f.ttls[key]
	if !ok {
		return -1 * time.Millisecond, nil
	}
	return ttl, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.strings, key)
		delete(f.hashes, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeRedis) OTPChallengeKey(phone string) string {
	return "pp:otp:challenge:" + phone
}

func (f *fakeRedis) OTPSendCounterKey(phone string) string {
	return "pp:otp:sends:" + phone
}

func (f *fakeRedis) OTPLockKey(phone string) string {
	return "pp:otp:lock:" + phone
}

func TestStoreChallengeRoundTrip(t *testing.T) {
	redis := newFakeRedis()
	store := NewStore(redis)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)
	require.NoError(t, store.PutChallenge(ctx, testPhone, "123456", expiresAt))

	challenge, err := store.GetChallenge(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, challenge)
	assert.Equal(t, "123456", challenge.Code)
	assert.True(t, challenge.ExpiresAt.Equal(expiresAt))
	assert.EqualValues(t, 0, challenge.Attempts)

	// The grace period keeps the hash around past the code's validity.
	ttl := redis.ttls[redis.OTPChallengeKey(testPhone)]
	assert.Greater(t, ttl, 5*time.Minute)

	require.NoError(t, store.DeleteChallenge(ctx, testPhone))
	challenge, err = store.GetChallenge(ctx, testPhone)
	require.NoError(t, err)
	assert.Nil(t, challenge)
}

func TestStorePutChallengeResetsAttempts(t *testing.T) {
	redis := newFakeRedis()
	store := NewStore(redis)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(5 * time.Minute)
	require.NoError(t, store.PutChallenge(ctx, testPhone, "111111", expiresAt))

	attempts, err := store.IncrementAttempts(ctx, testPhone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	require.NoError(t, store.PutChallenge(ctx, testPhone, "222222", expiresAt))
	challenge, err := store.GetChallenge(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, challenge)
	assert.Equal(t, "222222", challenge.Code)
	assert.EqualValues(t, 0, challenge.Attempts)
}

func TestStoreSendCounter(t *testing.T) {
	redis := newFakeRedis()
	store := NewStore(redis)
	ctx := context.Background()

	count, err := store.SendCount(ctx, testPhone)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	for i := 1; i <= 3; i++ {
		sent, recErr := store.RecordSend(ctx, testPhone, 10*time.Minute)
		require.NoError(t, recErr)
		assert.EqualValues(t, i, sent)
	}

	count, err = store.SendCount(ctx, testPhone)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	retryAfter, err := store.SendRetryAfter(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, retryAfter)
}

func TestStoreLockLifecycle(t *testing.T) {
	redis := newFakeRedis()
	store := NewStore(redis)
	ctx := context.Background()

	ttl, err := store.LockTTL(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, ttl)

	require.NoError(t, store.Lock(ctx, testPhone, 15*time.Minute))
	ttl, err = store.LockTTL(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)

	require.NoError(t, store.ClearSendState(ctx, testPhone))
	ttl, err = store.LockTTL(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, ttl)

	count, err := store.SendCount(ctx, testPhone)
	require.NoError(t, err)
	assert.Zero(t, count)
}

package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

const resetKeyPrefix = "password_reset:"

// recordFailure increments attempts only while the code is still pending so
// that an expired key is never recreated without a TTL.
var recordFailure = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// NewRedisClient connects to the Redis server at url (redis://host:port/db).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisResetStore is a ResetCodeStore backed by Redis hashes. Expiry is
// enforced by key TTL, so DeleteExpired has nothing to do.
type RedisResetStore struct {
	client *redis.Client
}

// NewRedisResetStore creates a new RedisResetStore.
func NewRedisResetStore(client *redis.Client) *RedisResetStore {
	return &RedisResetStore{client: client}
}

func resetKey(email string) string {
	return resetKeyPrefix + email
}

func (s *RedisResetStore) Save(ctx context.Context, reset *model.PasswordReset) error {
	key := resetKey(reset.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", reset.CodeHash,
			"attempts", reset.Attempts,
			"expires_at", toMillis(reset.ExpiresAt),
			"created_at", toMillis(reset.CreatedAt),
		)
		pipe.PExpireAt(ctx, key, reset.ExpiresAt)
		return nil
	})
	return err
}

func (s *RedisResetStore) Get(ctx context.Context, email string) (*model.PasswordReset, error) {
	fields, err := s.client.HGetAll(ctx, resetKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrResetNotFound
	}

	reset := &model.PasswordReset{Email: email, CodeHash: fields["code_hash"]}
	if reset.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	reset.ExpiresAt = fromMillis(expires)
	reset.CreatedAt = fromMillis(created)
	return reset, nil
}

func (s *RedisResetStore) RecordFailure(ctx context.Context, email string) (int, error) {
	n, err := recordFailure.Run(ctx, s.client, []string{resetKey(email)}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrResetNotFound
	}
	return n, nil
}

func (s *RedisResetStore) Delete(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Del(ctx, resetKey(email)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisResetStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

var _ ResetCodeStore = (*RedisResetStore)(nil)

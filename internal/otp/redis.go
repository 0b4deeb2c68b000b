package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:email:"

// RedisStore shares pending codes across instances. Expiry is delegated to
// redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+email, code, ttl).Err(); err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (string, error) {
	code, err := s.client.Get(ctx, redisKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading otp: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("deleting otp: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound signals a missing or expired verification code.
var ErrCodeNotFound = errors.New("verification code not found")

// CodeStore holds short-lived verification codes keyed by email. Backed by
// Redis so codes survive restarts and are shared across instances.
type CodeStore struct {
	client *redis.Client
	prefix string
}

// NewCodeStore constructs a CodeStore.
func NewCodeStore(client *redis.Client, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "reset-code"
	}
	return &CodeStore{client: client, prefix: prefix}
}

func (s *CodeStore) key(email string) string {
	return s.prefix + ":" + email
}

// Set stores a code with the given time to live.
func (s *CodeStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(email), code, ttl).Err()
}

// Get returns the stored code, or ErrCodeNotFound if absent or expired.
func (s *CodeStore) Get(ctx context.Context, email string) (string, error) {
	value, err := s.client.Get(ctx, s.key(email)).Result()
	if err == redis.Nil {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Delete removes the stored code.
func (s *CodeStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}

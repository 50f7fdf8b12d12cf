package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// keyPrefix namespaces session keys in a shared Redis instance.
const keyPrefix = "ssio:session:"

// RedisStore implements Store against a Redis backend, letting multiple
// gateway processes share one session space. Redis enforces the TTL, so
// expired sessions disappear without a cleanup loop.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store and verifies the
// connection before returning.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis session store requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Put stores the management credential for the given user identity.
func (s *RedisStore) Put(ctx context.Context, userID, credential string, expiresAt time.Time) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			// Already expired; storing it would immediately violate Get's
			// liveness contract.
			return s.Remove(ctx, userID)
		}
	}
	if err := s.client.Set(ctx, keyPrefix+userID, credential, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns the live credential for the given user identity.
func (s *RedisStore) Get(ctx context.Context, userID string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return val, true, nil
}

// Remove deletes the session for the given user identity.
func (s *RedisStore) Remove(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

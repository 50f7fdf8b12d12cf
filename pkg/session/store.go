// Package session holds the process-wide binding between an authenticated
// user identity and the upstream management credential acquired at login.
//
// The store is the only mutable shared state in the gateway core. It is
// deliberately narrow: per-key atomic put/get/remove with last-write-wins
// semantics and no merge. Credential values are opaque to the store and
// must never appear in logs or string representations.
package session

import (
	"context"
	"time"
)

// Type defines the type of session store backend.
type Type string

const (
	// TypeMemory uses in-memory storage (default). Sessions do not survive
	// a process restart; users simply log in again.
	TypeMemory Type = "memory"

	// TypeRedis uses a Redis backend, for multi-process deployments.
	TypeRedis Type = "redis"
)

// Store maps a user identity to the upstream management credential held for
// that user. At most one live session exists per user identity; a Put for
// an existing identity replaces the previous session.
type Store interface {
	// Put stores the management credential for the given user identity.
	// A zero expiresAt means the session only ends on Remove.
	Put(ctx context.Context, userID, credential string, expiresAt time.Time) error

	// Get returns the credential for the given user identity. The second
	// return value is false when no live session exists; callers must treat
	// that as an authentication failure, not a retryable condition.
	Get(ctx context.Context, userID string) (string, bool, error)

	// Remove deletes the session for the given user identity. Removing an
	// absent session is not an error.
	Remove(ctx context.Context, userID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Config configures the session store backend.
type Config struct {
	// Type specifies the backend type. Defaults to memory.
	Type Type

	// RedisAddr is the host:port of the Redis server, for TypeRedis.
	RedisAddr string

	// RedisPassword authenticates against Redis, if set.
	RedisPassword string

	// RedisDB selects the Redis logical database.
	RedisDB int
}

// NewStore creates the session store for the given configuration.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeRedis:
		return NewRedisStore(ctx, cfg)
	default:
		return NewMemoryStore(), nil
	}
}

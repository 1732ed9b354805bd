package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a scope when the key holds no value.
var ErrNotFound = errors.New("cache: key not found")

// DurableScope is storage shared by every session of the deployment. It
// survives restarts when backed by Postgres or an object store.
type DurableScope interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionScope is storage partitioned by session id. A ttl of zero means
// the backend default applies.
type SessionScope interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string, keys ...string) error
	Keys(ctx context.Context, sessionID string) ([]string, error)
}

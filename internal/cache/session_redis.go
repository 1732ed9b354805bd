package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis"
)

const redisSessionPrefix = "findoc:session:"

// RedisSession implements SessionScope with one Redis hash per session.
// The hash expires as a whole after the session ttl.
type RedisSession struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSession connects to Redis and verifies the connection.
func NewRedisSession(opts RedisOptions) (*RedisSession, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping().Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return &RedisSession{client: client}, nil
}

// Close releases the Redis connection pool.
func (r *RedisSession) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection.
func (r *RedisSession) Ping(ctx context.Context) error {
	return r.client.WithContext(ctx).Ping().Err()
}

func sessionHashKey(sessionID string) string {
	return redisSessionPrefix + sessionID
}

// Get returns the stored value for key in the session.
func (r *RedisSession) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := r.client.WithContext(ctx).HGet(sessionHashKey(sessionID), key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return data, nil
}

// Put stores value under key and refreshes the session expiry.
func (r *RedisSession) Put(ctx context.Context, sessionID, key string, value []byte, ttl time.Duration) error {
	hash := sessionHashKey(sessionID)
	_, err := r.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HSet(hash, key, value)
		if ttl > 0 {
			pipe.Expire(hash, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// Delete removes keys from the session.
func (r *RedisSession) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.WithContext(ctx).HDel(sessionHashKey(sessionID), keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Keys lists the keys of the session in sorted order.
func (r *RedisSession) Keys(ctx context.Context, sessionID string) ([]string, error) {
	keys, err := r.client.WithContext(ctx).HKeys(sessionHashKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ SessionScope = (*RedisSession)(nil)

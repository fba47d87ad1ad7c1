package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// Redis is the remote cache tier backed by go-redis. The caller owns the
// client lifecycle; Close is a no-op so a shared client can also serve the
// rate-limit store.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. The prefix namespaces all cache keys.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "humbldata:cache"
	}

	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + key
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCacheReadFailed, "redis get", err)
	}

	return value, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "redis set", err)
	}

	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return nil
}

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// RedisStore keeps bucket state in Redis so several processes share one
// budget. The window is carried by the key's TTL: the store always derives
// reset_at from Redis's own remaining TTL, never from a caller's wall clock,
// which keeps skewed clients honest.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. The caller owns the client
// lifecycle. The prefix namespaces all bucket keys.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "humbldata"
	}

	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Hit implements Store. INCR is atomic in Redis, so concurrent hits can never
// observe and consume the same unit of quota; the first hit of a window
// arms the TTL.
func (s *RedisStore) Hit(ctx context.Context, key string, rate Rate) (Result, error) {
	k := s.key(key)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, rate.Window)
	ttl := pipe.PTTL(ctx, k)

	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeRateStoreFailed, "redis rate-limit hit", err)
	}

	count := incr.Val()

	return s.result(count, ttl.Val(), rate, count <= int64(rate.Limit)), nil
}

// Peek implements Store.
func (s *RedisStore) Peek(ctx context.Context, key string, rate Rate) (Result, error) {
	k := s.key(key)

	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Result{}, errors.Wrap(errors.ErrCodeRateStoreFailed, "redis rate-limit peek", err)
	}

	count, err := get.Int64()
	if err != nil {
		// Key absent: fresh bucket.
		count = 0
	}

	return s.result(count, ttl.Val(), rate, count < int64(rate.Limit)), nil
}

func (s *RedisStore) result(count int64, ttl time.Duration, rate Rate, allowed bool) Result {
	remaining := rate.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if ttl < 0 {
		// No TTL yet (fresh or expiring key); the window starts now.
		ttl = rate.Window
	}

	return Result{
		Allowed:   allowed,
		Limit:     rate.Limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
}

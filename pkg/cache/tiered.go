package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/humbldata/humbldata-go/internal/logger"
)

// Tiered composes a local and an optional remote tier. Reads check the local
// tier first and backfill it on a remote hit; writes go to both tiers, with
// remote failures logged and swallowed. Overall fetch correctness never
// depends on either tier persisting anything.
type Tiered struct {
	local  Store
	remote Store
	logger *logger.Logger
}

// NewTiered builds the composite. remote may be nil, in which case the cache
// degrades to local-only.
func NewTiered(local, remote Store, log *logger.Logger) *Tiered {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Tiered{local: local, remote: remote, logger: log}
}

// Get looks the key up tier by tier and reports which tier answered.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, Outcome, error) {
	value, ok, err := t.local.Get(ctx, key)
	if err != nil {
		// A broken local tier is diagnostic, not fatal: fall through to the
		// remote tier as if it were a miss.
		t.logger.Warn("local cache read failed", zap.Error(err), zap.String("key", key))
	} else if ok {
		return value, OutcomeLocalHit, nil
	}

	if t.remote == nil {
		return nil, OutcomeMiss, nil
	}

	value, ok, err = t.remote.Get(ctx, key)
	if err != nil {
		t.logger.Warn("remote cache read failed", zap.Error(err), zap.String("key", key))

		return nil, OutcomeMiss, nil
	}

	if !ok {
		return nil, OutcomeMiss, nil
	}

	// Backfill the local tier so the next lookup stays in-process. TTL is
	// unknown here; the local entry inherits no expiry and ages out with the
	// process.
	if err := t.local.Set(ctx, key, value, 0); err != nil {
		t.logger.Warn("local cache backfill failed", zap.Error(err), zap.String("key", key))
	}

	return value, OutcomeRemoteHit, nil
}

// Set writes both tiers. Only a local write failure is returned; the remote
// tier is soft-fail by contract.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	if t.remote == nil {
		return nil
	}

	if err := t.remote.Set(ctx, key, value, ttl); err != nil {
		t.logger.Warn("remote cache write failed, continuing without it",
			zap.Error(err), zap.String("key", key))
	}

	return nil
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	err := t.local.Close()

	if t.remote != nil {
		if rerr := t.remote.Close(); rerr != nil && err == nil {
			err = rerr
		}
	}

	return err
}

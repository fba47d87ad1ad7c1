// Package cache provides the two-tier (local + remote) byte store used for
// serialized fetch results. The cache is strictly best-effort: a remote tier
// failure degrades service to local-only caching and is never surfaced as a
// fetch failure.
package cache

import (
	"context"
	"time"
)

// Store is a single cache tier. Implementations must be safe for concurrent
// use.
type Store interface {
	// Get retrieves a cached value by key. The second return reports whether
	// the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases any resources held by the tier.
	Close() error
}

// Outcome classifies a tiered lookup for diagnostics. It never changes the
// returned data.
type Outcome string

const (
	OutcomeLocalHit  Outcome = "local_hit"
	OutcomeRemoteHit Outcome = "remote_hit"
	OutcomeMiss      Outcome = "miss"
)

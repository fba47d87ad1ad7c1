package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds fixed-window bucket state. Hit atomically consumes one unit of
// quota when the bucket allows it; Peek reads the bucket without consuming.
// Implementations must be safe for concurrent use and must never let two
// concurrent Hit calls decrement from the same remaining value.
type Store interface {
	Hit(ctx context.Context, key string, rate Rate) (Result, error)
	Peek(ctx context.Context, key string, rate Rate) (Result, error)
}

type bucket struct {
	remaining int
	resetAt   time.Time
}

// MemoryStore is the in-process bucket store. A single mutex linearizes all
// admissions; bucket resets stay aligned to fixed wall-clock window
// boundaries instead of re-anchoring to the moment of the first late call.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store with an injectable clock.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Hit implements Store.
func (s *MemoryStore) Hit(ctx context.Context, key string, rate Rate) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.advance(key, rate)

	allowed := b.remaining > 0
	if allowed {
		b.remaining--
	}

	return Result{
		Allowed:   allowed,
		Limit:     rate.Limit,
		Remaining: b.remaining,
		ResetAt:   b.resetAt,
	}, nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(ctx context.Context, key string, rate Rate) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.advance(key, rate)

	return Result{
		Allowed:   b.remaining > 0,
		Limit:     rate.Limit,
		Remaining: b.remaining,
		ResetAt:   b.resetAt,
	}, nil
}

// advance returns the bucket for key, resetting it if its window elapsed.
// reset_at only ever moves forward, one whole window at a time, so exactly
// one caller at a window boundary observes the reset.
func (s *MemoryStore) advance(key string, rate Rate) *bucket {
	now := s.now()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{
			remaining: rate.Limit,
			resetAt:   now.Truncate(rate.Window).Add(rate.Window),
		}
		s.buckets[key] = b

		return b
	}

	for !now.Before(b.resetAt) {
		b.resetAt = b.resetAt.Add(rate.Window)
		b.remaining = rate.Limit
	}

	return b
}

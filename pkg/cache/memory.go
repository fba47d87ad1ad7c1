package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Memory is the local cache tier: a sharded in-memory map with per-entry
// expiry. Sharding by key hash keeps lock contention low when many fetches
// run concurrently.
type Memory struct {
	shards [numShards]*memoryShard
}

type memoryShard struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an empty local tier.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &memoryShard{store: make(map[string]memoryEntry)}
	}

	return m
}

func (m *Memory) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))

	return m.shards[h.Sum32()%numShards]
}

// Get implements Store. Expired entries are dropped lazily on read.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	shard := m.shard(key)

	shard.mu.RLock()
	entry, ok := shard.store[key]
	shard.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		shard.mu.Lock()
		delete(shard.store, key)
		shard.mu.Unlock()

		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	shard := m.shard(key)

	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()

	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	for _, shard := range m.shards {
		shard.mu.Lock()
		shard.store = make(map[string]memoryEntry)
		shard.mu.Unlock()
	}

	return nil
}

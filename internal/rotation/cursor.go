// Package rotation holds the per-organization round-robin cursor, the one
// piece of shared mutable state in the system. Every implementation must
// make Next an atomic read-modify-write; a plain read-then-write would let
// two concurrent allocations observe the same cursor value and
// double-assign one agent while another gets none.
package rotation

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CursorStore advances and returns the rotation counter for an
// organization. The first call returns 1; callers index with
// (value-1) mod roster-size.
type CursorStore interface {
	Next(ctx context.Context, orgID string) (int64, error)
}

// MemoryCursor is a mutex-guarded in-process store, suitable for a single
// instance and for tests.
type MemoryCursor struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryCursor initializes the store.
func NewMemoryCursor() *MemoryCursor {
	return &MemoryCursor{counters: make(map[string]int64)}
}

// Next atomically increments the organization counter.
func (m *MemoryCursor) Next(_ context.Context, orgID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[orgID]++
	return m.counters[orgID], nil
}

// RedisCursor backs the counter with Redis INCR, giving atomicity across
// processes.
type RedisCursor struct {
	client *redis.Client
}

// NewRedisCursor wraps the given client.
func NewRedisCursor(client *redis.Client) *RedisCursor {
	return &RedisCursor{client: client}
}

// Next atomically increments the organization counter.
func (r *RedisCursor) Next(ctx context.Context, orgID string) (int64, error) {
	return r.client.Incr(ctx, "rotation:"+orgID).Result()
}

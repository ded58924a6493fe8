// Package ratelimit caps submissions per client address over a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the state of a key after one hit.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts hits per key. Implementations must be safe for concurrent use.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// MemoryStore is a fixed-window Store local to one process.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	nextSweep time.Time
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now, window)

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &bucket{windowEnd: now.Add(window)}
		m.buckets[key] = b
	}
	if b.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: b.windowEnd}, nil
	}
	b.count++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - b.count, ResetAt: b.windowEnd}, nil
}

// sweep drops expired buckets at most once per window.
func (m *MemoryStore) sweep(now time.Time, window time.Duration) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, b := range m.buckets {
		if !now.Before(b.windowEnd) {
			delete(m.buckets, key)
		}
	}
	m.nextSweep = now.Add(window)
}

// Len is the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryEntries bounds a Memory cache created with a non-positive size.
const DefaultMemoryEntries = 10_000

type memoryEntry struct {
	value   bool
	expires time.Time
}

// Memory is an in-process cache holding a bounded number of entries. When full,
// expired entries are swept first; if none are expired an arbitrary entry is
// evicted.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	max     int
	now     func() time.Time
}

// NewMemory returns a cache bounded to size entries.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	return &Memory{entries: make(map[string]memoryEntry), max: size, now: time.Now}
}

func (m *Memory) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (bool, error), ttl time.Duration) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	now := m.now()
	m.mu.Unlock()
	if ok && now.Before(e.expires) {
		return e.value, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.max {
		m.evictLocked(now)
	}
	m.entries[key] = memoryEntry{value: v, expires: now.Add(ttl)}
	return v, nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	if len(m.entries) < m.max {
		return
	}
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}

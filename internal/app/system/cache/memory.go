package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Values are stored JSON-encoded so callers
// never share slices or maps with the cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests use it to step past a TTL.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !now.Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	m.entries[key] = entry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

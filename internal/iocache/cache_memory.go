package iocache

import (
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

type memoryEntry struct {
	value   []byte
	version int
	ts      int64
}

// MemoryCacheStore is a process-local cache. Entries older than the TTL are
// dropped when they are read or when a newer entry is written.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ contract.CacheStore = &MemoryCacheStore{} // Compile-time check

// NewMemoryCacheStore returns an empty in-memory store.
func NewMemoryCacheStore(ttl time.Duration) *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryCacheStore) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(time.Unix(e.ts, 0)) > m.ttl
}

// Get retrieves a value by key. A missing or expired key wraps ErrNotFound.
func (m *MemoryCacheStore) Get(key string) ([]byte, int, int64, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, 0, 0, fmt.Errorf("cache key %s: %w", key, contract.ErrNotFound)
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, e.version, e.ts, nil
}

// Set stores a copy of value and evicts expired entries.
func (m *MemoryCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{value: stored, version: version, ts: timestamp}
	return nil
}

// Delete removes a key.
func (m *MemoryCacheStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (m *MemoryCacheStore) Clear() error {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}

// Close releases the entries.
func (m *MemoryCacheStore) Close() error {
	return m.Clear()
}

// GetStatus reports the live entries.
func (m *MemoryCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.MemoryCache), Connected: true}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest, oldest int64
	for _, e := range m.entries {
		if m.expired(e) {
			continue
		}
		status.TotalEntries++
		status.TableSizeBytes += int64(len(e.value))
		if newest == 0 || e.ts > newest {
			newest = e.ts
		}
		if oldest == 0 || e.ts < oldest {
			oldest = e.ts
		}
	}
	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(newest, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	return status, nil
}

// NoneCacheStore disables caching: every Get misses and every Set is dropped.
type NoneCacheStore struct{}

var _ contract.CacheStore = NoneCacheStore{} // Compile-time check

// Get always misses.
func (NoneCacheStore) Get(key string) ([]byte, int, int64, error) {
	return nil, 0, 0, fmt.Errorf("cache key %s: %w", key, contract.ErrNotFound)
}

// Set is a no-op.
func (NoneCacheStore) Set(string, []byte, int, int64) error { return nil }

// Delete is a no-op.
func (NoneCacheStore) Delete(string) error { return nil }

// Clear is a no-op.
func (NoneCacheStore) Clear() error { return nil }

// Close is a no-op.
func (NoneCacheStore) Close() error { return nil }

// GetStatus reports a disconnected store.
func (NoneCacheStore) GetStatus() (schema.CacheStatus, error) {
	return schema.CacheStatus{Backend: string(schema.NoneCache)}, nil
}

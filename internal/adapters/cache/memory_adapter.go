package cache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

type memoryCounter struct {
	fields    map[string]int64
	expiresAt time.Time
}

// MemoryBackend is the in-process fallback. Expiry is wall-clock based and
// checked when a key is read or listed; expired items are removed lazily.
type MemoryBackend struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items:    make(map[string]memoryItem),
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests
func (b *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	b.now = now
	return b
}

// Type reports the in-process backend
func (b *MemoryBackend) Type() string {
	return providers.BackendMemory
}

// Get returns a live value or ErrCacheMiss, evicting it if expired
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	item, ok := b.items[key]
	b.mu.RUnlock()
	if !ok {
		return nil, providers.ErrCacheMiss
	}

	if b.expired(item.expiresAt) {
		b.mu.Lock()
		// re-check: a concurrent Set may have replaced the item
		if current, still := b.items[key]; still && b.expired(current.expiresAt) {
			delete(b.items, key)
		}
		b.mu.Unlock()
		return nil, providers.ErrCacheMiss
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a copy of value; a non-positive ttl never expires
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	item := memoryItem{value: stored}
	if ttl > 0 {
		item.expiresAt = b.now().Add(ttl)
	}

	b.mu.Lock()
	b.items[key] = item
	b.mu.Unlock()
	return nil
}

// Delete removes keys and counters with those names
func (b *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.items, key)
		delete(b.counters, key)
	}
	return nil
}

// Keys lists live keys matching pattern in sorted order
func (b *MemoryBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for key, item := range b.items {
		if b.expired(item.expiresAt) {
			delete(b.items, key)
			continue
		}
		if ok, err := path.Match(pattern, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}
	for key, counter := range b.counters {
		if b.expired(counter.expiresAt) {
			delete(b.counters, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// IncrCounter adds delta to a field of an in-process counter hash
func (b *MemoryBackend) IncrCounter(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	counter, ok := b.counters[key]
	if !ok || b.expired(counter.expiresAt) {
		counter = &memoryCounter{fields: make(map[string]int64)}
		b.counters[key] = counter
	}
	counter.fields[field] += delta
	if ttl > 0 {
		counter.expiresAt = b.now().Add(ttl)
	}
	return nil
}

// Counter returns the current value of a counter field
func (b *MemoryBackend) Counter(key, field string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counter, ok := b.counters[key]
	if !ok || b.expired(counter.expiresAt) {
		return 0
	}
	return counter.fields[field]
}

// Ping always succeeds
func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Diagnostics reports item counts, including expired items not yet evicted
func (b *MemoryBackend) Diagnostics(ctx context.Context) (map[string]interface{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	expired := 0
	for _, item := range b.items {
		if b.expired(item.expiresAt) {
			expired++
		}
	}
	return map[string]interface{}{
		"items":          len(b.items),
		"expired_items":  expired,
		"counter_hashes": len(b.counters),
	}, nil
}

func (b *MemoryBackend) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !b.now().Before(expiresAt)
}

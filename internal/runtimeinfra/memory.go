package runtimeinfra

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// memoryItem is one cached entry with an optional expiry.
type memoryItem struct {
	value     any
	expiresAt time.Time
}

func (i memoryItem) expired() bool {
	return !i.expiresAt.IsZero() && time.Now().After(i.expiresAt)
}

// MemoryRuntime is a minimal in-process runtime. Reads are coalesced
// with singleflight so concurrent fetches for the same key execute
// once, which makes it a faithful stand-in for the sturdyc runtime in
// tests. It implements the same boundary as the sturdyc adapter.
type MemoryRuntime struct {
	ttl  time.Duration
	data *xsync.MapOf[string, memoryItem]
	sf   singleflight.Group
}

// NewMemoryRuntime creates an in-memory runtime whose entries expire
// after ttl. A ttl of zero disables expiry.
func NewMemoryRuntime(ttl time.Duration) *MemoryRuntime {
	return &MemoryRuntime{
		ttl:  ttl,
		data: xsync.NewMapOf[string, memoryItem](),
	}
}

// Fetch returns the cached value for key, executing fetchFn on a miss.
// Concurrent callers with the same key share a single execution.
func (m *MemoryRuntime) Fetch(ctx context.Context, key string, fetchFn any, options map[string]any) (any, error) {
	if key == "" {
		return nil, &ConfigError{Field: "key", Message: "cannot be empty"}
	}
	if err := validateExecFn("fetchFn", fetchFn); err != nil {
		return nil, err
	}

	if disableCacheRequested(options) {
		return callExecFn(ctx, fetchFn)
	}

	if item, ok := m.data.Load(key); ok {
		if !item.expired() {
			return item.value, nil
		}
		m.data.Delete(key)
	}

	result, err, _ := m.sf.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have stored
		// the value while this one waited.
		if item, ok := m.data.Load(key); ok && !item.expired() {
			return item.value, nil
		}

		value, err := callExecFn(ctx, fetchFn)
		if err != nil {
			return nil, err
		}

		m.data.Store(key, memoryItem{value: value, expiresAt: m.expiry()})
		return value, nil
	})
	return result, err
}

// Mutate executes the bound operation directly; nothing is cached.
func (m *MemoryRuntime) Mutate(ctx context.Context, id, operation string, execFn any, options map[string]any) (any, error) {
	if err := validateExecFn("execFn", execFn); err != nil {
		return nil, err
	}
	return callExecFn(ctx, execFn)
}

// Invalidate removes the given keys.
func (m *MemoryRuntime) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.data.Delete(key)
	}
	return nil
}

// InvalidatePrefix removes all keys starting with prefix.
func (m *MemoryRuntime) InvalidatePrefix(ctx context.Context, prefix string) error {
	var toDelete []string
	m.data.Range(func(key string, _ memoryItem) bool {
		if strings.HasPrefix(key, prefix) {
			toDelete = append(toDelete, key)
		}
		return true
	})
	for _, key := range toDelete {
		m.data.Delete(key)
	}
	return nil
}

// Len reports the number of live entries, expired ones included until
// their next access.
func (m *MemoryRuntime) Len() int {
	return m.data.Size()
}

func (m *MemoryRuntime) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(m.ttl)
}

package mapk

import (
	"sync"
	"sync/atomic"
)

// TypeCache provides thread-safe, build-once caching keyed by a comparable
// key, typically a reflect.Type or a pair of them. A build runs once per key
// even under concurrent access. Failed builds are evicted so a later call can
// retry after the registry changed.
type TypeCache[K comparable, V any] struct {
	cache sync.Map // map[K]*cacheEntry[V]
}

// cacheEntry holds the result of a single build
type cacheEntry[V any] struct {
	once  sync.Once
	built atomic.Bool
	value V
	err   error
}

// NewTypeCache creates a new thread-safe type cache
func NewTypeCache[K comparable, V any]() *TypeCache[K, V] {
	return &TypeCache[K, V]{}
}

// GetOrBuild returns the cached value for key, calling build to create it if
// it does not exist. build must not call GetOrBuild for the same key.
func (tc *TypeCache[K, V]) GetOrBuild(key K, build func() (V, error)) (V, error) {
	// Try to load existing entry
	v, ok := tc.cache.Load(key)
	if !ok {
		// LoadOrStore returns the actual stored value
		v, _ = tc.cache.LoadOrStore(key, &cacheEntry[V]{})
	}
	entry := v.(*cacheEntry[V])

	entry.once.Do(func() {
		entry.value, entry.err = build()
		entry.built.Store(entry.err == nil)
	})

	if entry.err != nil {
		tc.cache.CompareAndDelete(key, entry)
	}
	return entry.value, entry.err
}

// Get retrieves a successfully built value for key if it exists
func (tc *TypeCache[K, V]) Get(key K) (V, bool) {
	var zero V

	v, ok := tc.cache.Load(key)
	if !ok {
		return zero, false
	}

	entry := v.(*cacheEntry[V])
	if !entry.built.Load() {
		return zero, false
	}
	return entry.value, true
}

// Delete removes the cache entry for key
func (tc *TypeCache[K, V]) Delete(key K) {
	tc.cache.Delete(key)
}

// Clear removes all cache entries
func (tc *TypeCache[K, V]) Clear() {
	tc.cache.Clear()
}

// Len returns the number of cached entries.
func (tc *TypeCache[K, V]) Len() int {
	n := 0
	tc.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

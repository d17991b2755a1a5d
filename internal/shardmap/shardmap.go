// Package shardmap implements the concurrent registry map used for the §5
// "shared-resource policy". The map is not sharded: one RWMutex guards
// all keys, so a write to one key briefly excludes reads and writes of
// every other key. No
// sharded-map library appears anywhere in the retrieved example pack, so
// this one piece is standard-library-backed (sync.RWMutex + map) rather
// than an ecosystem dependency — see DESIGN.md.
package shardmap

import "sync"

// Map is a concurrency-safe map guarded by a single RWMutex: concurrent
// readers never block each other, but Store, LoadOrStore's insert and
// Delete take the map-wide write lock.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Load returns the value stored for key, if any.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

// Store sets the value for key.
func (m *Map[K, V]) Store(key K, val V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = val
}

// LoadOrStore returns the existing value for key if present, otherwise
// stores and returns newVal().
func (m *Map[K, V]) LoadOrStore(key K, newVal func() V) V {
	m.mu.RLock()
	v, ok := m.m[key]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.m[key]; ok {
		return v
	}
	v = newVal()
	m.m[key] = v
	return v
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
}

// Range calls f for every key/value pair. Iteration stops early if f
// returns false. The snapshot is taken under a read lock but f is called
// outside it, so f may safely call back into the map.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.mu.RLock()
	snapshot := make(map[K]V, len(m.m))
	for k, v := range m.m {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if !f(k, v) {
			return
		}
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

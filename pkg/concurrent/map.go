package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map is a typed wrapper around sync.Map that is safe for concurrent use
// by multiple goroutines without additional locking.
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len returns the current number of elements in the map.
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

// Load returns the value stored in the map for a key, or the zero value if
// no value is present. The ok result indicates whether the value was found.
func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	_, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	} else {
		m.data.Store(key, value)
	}
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	}
	return actual.(V), loaded
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) {
	_, loaded := m.data.LoadAndDelete(key)
	if loaded {
		m.length.Add(-1)
	}
}

// Swap swaps the value for a key and returns the previous value if any.
func (m *Map[K, V]) Swap(key K, value V) (V, bool) {
	previous, loaded := m.data.Swap(key, value)
	if !loaded {
		m.length.Add(1)

		var zero V
		return zero, false
	}
	return previous.(V), true
}

// Clear deletes all the entries, resulting in an empty Map.
func (m *Map[K, V]) Clear() {
	// sync.Map.Clear requires Go 1.23; delete entries individually to stay
	// compatible with the Go 1.21 toolchain.
	m.data.Range(func(key, _ any) bool {
		m.data.Delete(key)
		return true
	})
	m.length.Store(0)
}

// Range calls f sequentially for each key and value present in the map.
// If f returns false, range stops the iteration.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import "sync"

// lazyMap computes each value at most once, on first lookup of its key.
// Errors are cached along with values.
type lazyMap[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]func() (V, error)
	compute func(K) (V, error)
}

func newLazyMap[K comparable, V any](compute func(K) (V, error)) *lazyMap[K, V] {
	return &lazyMap[K, V]{compute: compute}
}

func (m *lazyMap[K, V]) get(key K) (V, error) {
	m.mu.Lock()
	f, ok := m.entries[key]
	if !ok {
		if m.entries == nil {
			m.entries = make(map[K]func() (V, error))
		}
		f = sync.OnceValues(func() (V, error) { return m.compute(key) })
		m.entries[key] = f
	}
	m.mu.Unlock()
	// Compute outside the lock so slow keys don't block other keys.
	return f()
}

// reset drops all cached entries. Used by tests that swap the PMU file system.
func (m *lazyMap[K, V]) reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

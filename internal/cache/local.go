// Package cache holds the process-local and Redis-backed caches used for
// display data and webhook replay suppression.  Nothing in this package is
// consulted by seat allocation.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Local is a process-local map with per-entry expiry.  Expired entries
// are dropped lazily on read and by Sweep.
type Local[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	now  func() time.Time
}

// NewLocal returns an empty cache.
func NewLocal[K comparable, V any]() *Local[K, V] {
	return &Local[K, V]{data: make(map[K]entry[V]), now: time.Now}
}

// Get returns the live value stored under key.
func (c *Local[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Local[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{value: value, expires: c.now().Add(ttl)}
}

// Del removes key.
func (c *Local[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of stored entries, live or not.
func (c *Local[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Sweep drops expired entries.
func (c *Local[K, V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.data {
		if !now.Before(e.expires) {
			delete(c.data, k)
		}
	}
}


package cache

import (
	"sync"
	"time"
)

// Cache is an in-process map whose entries expire after a TTL.
type Cache[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry[V]
	now func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cache[V]{
		ttl: ttl,
		m:   make(map[string]entry[V]),
		now: time.Now,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || now.After(e.exp) {
		if ok {
			c.Delete(key)
		}

		var zero V
		return zero, false
	}

	return e.val, true
}

func (c *Cache[V]) Set(key string, val V) {
	c.SetFor(key, val, c.ttl)
}

// SetFor stores val with its own ttl instead of the cache default.
func (c *Cache[V]) SetFor(key string, val V, ttl time.Duration) {
	c.mu.Lock()
	c.m[key] = entry[V]{val: val, exp: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

// Sweep drops expired entries and reports how many were removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
			n++
		}
	}

	return n
}

package cache

import "sync"

// Cache maps asset identities to expensive derived values (decoded icons,
// signed distance fields) so they are built once and never on the viewport path.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates an empty Cache
func New[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]V),
	}
}

// Get retrieves a value by key
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Set stores a value by key
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = v
}

// Delete removes a value by key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of cached values
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset clears the cache
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]V)
}

package layout

import "sync"

// DefaultCacheSize bounds the number of remembered layouts.
const DefaultCacheSize = 24

// Cache maps a graph signature to node center positions. When full, the
// oldest-inserted entry is evicted. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]map[string]Position
	order    []string
}

// NewCache creates a cache holding at most capacity entries. A non-positive
// capacity selects DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]map[string]Position),
	}
}

// Get returns a copy of the positions stored under key.
func (c *Cache) Get(key string) (map[string]Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return clonePositions(pos), true
}

// Put stores positions under key. Re-putting an existing key replaces the value
// but keeps its place in the eviction order.
func (c *Cache) Put(key string, positions map[string]Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = clonePositions(positions)
		return
	}
	c.entries[key] = clonePositions(positions)
	c.order = append(c.order, key)
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the keys oldest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

func clonePositions(in map[string]Position) map[string]Position {
	out := make(map[string]Position, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

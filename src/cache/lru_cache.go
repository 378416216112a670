package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry holds a cached reply with expiration.
type Entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LRUCache is a thread-safe LRU cache with TTL support, used to memoize
// model replies keyed by prompt hash.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
}

type node struct {
	key   string
	entry Entry
}

// NewLRUCache creates a cache with the given capacity and TTL.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a value, expiring it lazily.
func (c *LRUCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false
	}
	n := elem.Value.(*node)
	if time.Now().After(n.entry.ExpiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return "", false
	}
	c.lru.MoveToFront(elem)
	return n.entry.Value, true
}

// Set adds or updates a value, evicting the oldest entry over capacity.
func (c *LRUCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*node).entry = Entry{Value: value, ExpiresAt: expiresAt}
		return
	}

	elem := c.lru.PushFront(&node{key: key, entry: Entry{Value: value, ExpiresAt: expiresAt}})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*node).key)
		}
	}
}

// Len reports the number of live entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Dump snapshots the cache for persistence.
func (c *LRUCache) Dump() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Entry, len(c.items))
	for key, elem := range c.items {
		out[key] = elem.Value.(*node).entry
	}
	return out
}

// Restore loads a snapshot, skipping already-expired entries.
func (c *LRUCache) Restore(dump map[string]Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range dump {
		if now.After(entry.ExpiresAt) {
			continue
		}
		elem := c.lru.PushFront(&node{key: key, entry: entry})
		c.items[key] = elem
		if c.lru.Len() > c.capacity {
			if oldest := c.lru.Back(); oldest != nil {
				c.lru.Remove(oldest)
				delete(c.items, oldest.Value.(*node).key)
			}
		}
	}
}

// HashKey derives a stable cache key from arbitrary text.
func HashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

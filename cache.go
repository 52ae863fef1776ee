package spc

import (
	"container/list"
	"encoding/json"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheSize is the number of results kept by a cache created with size 0
const DefaultCacheSize = 256

// Cache memoizes Analyze keyed by a content hash of the input.  The least recently used result is
// evicted once the cache is full.  Errors are not cached.  Cached outputs are shared between
// callers and must be treated as read only.  It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	size    int
	order   *list.List
	entries map[uint64]*list.Element
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	key uint64
	out Output
}

// NewCache returns a cache holding at most size results
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:    size,
		order:   list.New(),
		entries: make(map[uint64]*list.Element),
	}
}

// Key returns the content hash of an input
func Key(in Input) (uint64, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// Analyze returns the cached output for an identical input or computes and stores it.  The
// second return value reports a cache hit.
func (c *Cache) Analyze(in Input) (Output, bool, error) {
	key, err := Key(in)
	if err != nil {
		// inputs that cannot be hashed still get analyzed, Analyze reports the real problem
		out, err := Analyze(in)
		return out, false, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.order.MoveToFront(e)
		c.hits++
		out := e.Value.(*cacheEntry).out
		c.mu.Unlock()
		return out, true, nil
	}
	c.misses++
	c.mu.Unlock()

	out, err := Analyze(in)
	if err != nil {
		return Output{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.order.MoveToFront(e)
		return out, false, nil
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, out: out})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return out, false, nil
}

// Len returns the number of cached results
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the number of hits and misses since the cache was created
func (c *Cache) Stats() (hits uint64, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

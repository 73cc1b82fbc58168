package actorpath

import (
	"container/list"
	"sync"

	"github.com/actorworld/actorworld/engine/consts"
)

// lruCache is a small bounded LRU memoizing parse/compile results. When the
// capacity is reached the least recently used entry is evicted; a miss is
// always recomputable by the caller.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key string
	val interface{}
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		ll:       list.New(),
		items:    map[string]*list.Element{},
	}
}

func (c *lruCache) get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(*lruEntry).val
}

func (c *lruCache) put(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		elem.Value.(*lruEntry).val = val
		return
	}

	c.items[key] = c.ll.PushFront(&lruEntry{key, val})
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *lruCache) clear() {
	c.mu.Lock()
	c.ll = list.New()
	c.items = map[string]*list.Element{}
	c.mu.Unlock()
}

var (
	pathCache    = newLRUCache(consts.PATH_CACHE_CAPACITY)
	patternCache = newLRUCache(consts.PATTERN_CACHE_CAPACITY)
)

// ClearCaches clears the parse and pattern caches in bulk
func ClearCaches() {
	pathCache.clear()
	patternCache.clear()
}

package borough

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：borough 查询 LRU（geohash 为键）
// 约束：值为快照内 borough 下标，仅作候选，命中后仍需多边形复核；过期项在读取时淘汰。
type lookupCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

type cacheEntry struct {
	key     string
	idx     int
	expires time.Time
}

func newLookupCache(capacity int, ttl time.Duration) *lookupCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &lookupCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (c *lookupCache) get(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return -1, false
	}
	ent := e.Value.(*cacheEntry)
	if !c.now().Before(ent.expires) {
		c.order.Remove(e)
		delete(c.items, key)
		return -1, false
	}
	c.order.MoveToFront(e)
	return ent.idx, true
}

func (c *lookupCache) set(key string, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(c.ttl)
	if e, ok := c.items[key]; ok {
		ent := e.Value.(*cacheEntry)
		ent.idx, ent.expires = idx, exp
		c.order.MoveToFront(e)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, idx: idx, expires: exp})
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		delete(c.items, back.Value.(*cacheEntry).key)
		c.order.Remove(back)
	}
}

func (c *lookupCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

func (c *lookupCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

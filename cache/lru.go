package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache 进程内的结果缓存层：容量满时淘汰最久未访问的条目，
// 过期条目在下一次访问时清除。
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front 为最近访问
	index    map[string]*list.Element
	now      func() time.Time
}

type lruItem struct {
	key       string
	entry     *Entry
	expiresAt time.Time
}

// NewLRUCache capacity 最小为 1；ttl 为 0 时条目不过期
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: max(capacity, 1),
		ttl:      ttl,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get 命中时刷新访问顺序
func (c *LRUCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*lruItem)
	if c.expired(item) {
		c.drop(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return item.entry, true
}

// Set 写入或覆盖条目并重置过期时间
func (c *LRUCache) Set(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		item := el.Value.(*lruItem)
		item.entry, item.expiresAt = entry, c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		c.drop(c.order.Back())
	}
	c.index[key] = c.order.PushFront(&lruItem{key: key, entry: entry, expiresAt: c.now().Add(c.ttl)})
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

// Len 返回当前条目数（含尚未清除的过期条目）
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache) expired(item *lruItem) bool {
	return c.ttl > 0 && c.now().After(item.expiresAt)
}

func (c *LRUCache) drop(el *list.Element) {
	delete(c.index, el.Value.(*lruItem).key)
	c.order.Remove(el)
}

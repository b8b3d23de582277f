package statemachine

import "container/list"

// idempotencyKey identifies one client's one request.
type idempotencyKey struct {
	clientID string
	seq      uint64
}

type cacheEntry struct {
	key    idempotencyKey
	result []byte
}

// appliedCache is a bounded LRU mapping idempotency keys to encoded Results.
type appliedCache struct {
	capacity int
	ll       *list.List
	index    map[idempotencyKey]*list.Element
}

func newAppliedCache(capacity int) *appliedCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &appliedCache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[idempotencyKey]*list.Element, capacity),
	}
}

func (c *appliedCache) get(key idempotencyKey) ([]byte, bool) {
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *appliedCache) put(key idempotencyKey, result []byte) {
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, result: result})
	c.index[key] = el

	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		delete(c.index, back.Value.(*cacheEntry).key)
	}
}

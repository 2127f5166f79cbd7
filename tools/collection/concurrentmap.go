package collection

import "sync"

type concurrentMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewConcurrentMap[K comparable, V any]() ConcurrentMap[K, V] {
	return &concurrentMap[K, V]{
		m: make(map[K]V),
	}
}

func (c *concurrentMap[K, V]) Set(key K, v V) {
	c.mu.Lock()
	c.m[key] = v
	c.mu.Unlock()
}

func (c *concurrentMap[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	v, ok := c.m[key]
	c.mu.RUnlock()

	return v, ok
}

func (c *concurrentMap[K, V]) SetIfAbsent(key K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return false
	}
	c.m[key] = v

	return true
}

func (c *concurrentMap[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *concurrentMap[K, V]) Has(key K) bool {
	c.mu.RLock()
	_, ok := c.m[key]
	c.mu.RUnlock()

	return ok
}

func (c *concurrentMap[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]K, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}

	return keys
}

func (c *concurrentMap[K, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make([]V, 0, len(c.m))
	for _, v := range c.m {
		values = append(values, v)
	}

	return values
}

func (c *concurrentMap[K, V]) Range(fn func(key K, v V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.m {
		if !fn(k, v) {
			return
		}
	}
}

func (c *concurrentMap[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.m)
}

package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is an implementation of Cache kept in process memory.
// Expired values are dropped lazily on access and on every Set.
type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data       []byte
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
	}
}

func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for k, item := range c.data {
		if item.expired(now) {
			delete(c.data, k)
		}
	}

	var expiry time.Time
	if expiration != NoExpiration {
		expiry = now.Add(expiration)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	c.data[key] = cacheItem{
		data:       stored,
		expiration: expiry,
	}

	return nil
}

func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	if !ok || item.expired(c.now()) {
		return nil, ErrNotFound
	}

	return item.data, nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Healthcheck always succeeds, memory is always reachable.
func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return nil
}

// Len returns the number of stored values, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

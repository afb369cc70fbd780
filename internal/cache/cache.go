package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feral-file/batch-ledger/internal/adapter"
)

// Cache stores immutable documents by key
//
//go:generate mockgen -source=cache.go -destination=../mocks/cache.go -package=mocks -mock_names=Cache=MockCache
type Cache interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value
	Set(ctx context.Context, key string, value []byte) error
}

// DefaultMemoryEntries bounds the in-memory cache
const DefaultMemoryEntries = 1024

// memoryCache is a bounded LRU cache
type memoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	items      map[string]*list.Element
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemoryCache creates an in-process LRU cache holding up to maxEntries values
func NewMemoryCache(maxEntries int) Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &memoryCache{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	value := el.Value.(*memoryEntry).value
	return append([]byte(nil), value...), true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	value = append([]byte(nil), value...)
	if el, ok := c.items[key]; ok {
		el.Value.(*memoryEntry).value = value
		c.order.MoveToFront(el)
		return nil
	}

	c.items[key] = c.order.PushFront(&memoryEntry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// redisCache stores values in Redis under a key prefix
type redisCache struct {
	client adapter.RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis backed cache, ttl 0 keeps entries forever
func NewRedisCache(client adapter.RedisClient, prefix string, ttl time.Duration) Cache {
	return &redisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key)
	if adapter.IsRedisNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return value, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Package cache provides page caches used in front of the content
// fetcher so unchanged posts are not re-rendered on every build.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anchormap/anchormap/config"
	"github.com/anchormap/anchormap/internal/fetch"
)

const keyPrefix = "anchormap:page:"

// New selects the cache backend from config: Redis when a host is
// configured, an in-memory cache otherwise.
func New(cfg config.RedisConfig) fetch.PageCache {
	if cfg.Host == "" {
		return NewMemoryCache()
	}
	return NewRedisCache(cfg)
}

// RedisCache stores fetched pages in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *RedisCache) Get(ctx context.Context, pageURL string) (fetch.Page, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+pageURL).Bytes()
	if err == redis.Nil {
		return fetch.Page{}, false, nil
	}
	if err != nil {
		return fetch.Page{}, false, err
	}
	var page fetch.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return fetch.Page{}, false, err
	}
	return page, true, nil
}

func (c *RedisCache) Set(ctx context.Context, pageURL string, page fetch.Page, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+pageURL, data, ttl).Err()
}

// MemoryCache is a process-local fallback when Redis is not configured.
type MemoryCache struct {
	mu    sync.RWMutex
	pages map[string]memoryEntry
}

type memoryEntry struct {
	page    fetch.Page
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{pages: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, pageURL string) (fetch.Page, bool, error) {
	c.mu.RLock()
	entry, ok := c.pages[pageURL]
	c.mu.RUnlock()
	if !ok {
		return fetch.Page{}, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.pages, pageURL)
		c.mu.Unlock()
		return fetch.Page{}, false, nil
	}
	return entry.page, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, pageURL string, page fetch.Page, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.pages[pageURL] = memoryEntry{page: page, expires: expires}
	c.mu.Unlock()
	return nil
}

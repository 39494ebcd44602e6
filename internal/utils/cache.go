package utils

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache 存放可以重新计算的派生数据（筛选项、统计），值以 JSON 保存
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// LocalCache 进程内 LRU 缓存
type LocalCache struct {
	lruCache *lru.Cache[string, CacheItem]
}

var (
	cacheOnce     sync.Once
	cacheInstance *LocalCache
)

// GetCache 获取单例缓存实例
func GetCache() *LocalCache {
	cacheOnce.Do(func() {
		cacheInstance = NewLocalCache(500)
	})
	return cacheInstance
}

func NewLocalCache(size int) *LocalCache {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		// only fails for size <= 0
		panic(err)
	}
	return &LocalCache{lruCache: l}
}

func (c *LocalCache) Set(_ context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

func (c *LocalCache) Get(_ context.Context, key string, dst any) bool {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return false
	}

	// 检查过期
	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return false
	}

	return json.Unmarshal(val.Data, dst) == nil
}

func (c *LocalCache) Delete(_ context.Context, keys ...string) {
	for _, key := range keys {
		c.lruCache.Remove(key)
	}
}

package llm

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
)

// Cache stores completion text by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	// Backend names the implementation for metrics.
	Backend() string
}

// CacheKey hashes everything that affects the completion.
func CacheKey(model, systemPrompt, userPrompt string, maxTokens int, temperature float64) string {
	data, _ := json.Marshal(map[string]interface{}{
		"model":       model,
		"system":      systemPrompt,
		"prompt":      userPrompt,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// MemoryCache is an in-process LRU cache with a TTL per entry.
type MemoryCache struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[string]*list.Element
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Backend() string { return "memory" }

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	e := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return "", false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expiresAt = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expires})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryEntry).key)
	}
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// RedisCache shares completions between processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps client; keys are stored under prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) Backend() string { return "redis" }

// Get treats any Redis failure as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", zap.Error(err))
	}
}

// Clear deletes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// ConnectRedis opens a client and verifies the connection.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewCache builds the cache selected by cfg. It returns a nil Cache when
// caching is disabled. A Redis backend that cannot be reached falls back to
// memory. The returned close func releases the Redis connection.
func NewCache(ctx context.Context, cfg config.LLMConfig, rcfg config.RedisConfig, logger *zap.Logger) (Cache, func() error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	if !cfg.EnableCaching {
		return nil, noop
	}
	if cfg.CacheBackend == "redis" {
		client, err := ConnectRedis(ctx, rcfg)
		if err == nil {
			return NewRedisCache(client, rcfg.KeyPrefix, cfg.CacheTTL, logger), client.Close
		}
		logger.Warn("redis unavailable, using memory cache", zap.Error(err))
	}
	return NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), noop
}

package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/testforge/e2ekit/internal/config"
)

func TestCacheKey(t *testing.T) {
	base := CacheKey("m", "system", "user", 100, 0.7)

	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(base))
	}
	if again := CacheKey("m", "system", "user", 100, 0.7); again != base {
		t.Error("same inputs produced different keys")
	}

	variants := map[string]string{
		"model":       CacheKey("other", "system", "user", 100, 0.7),
		"system":      CacheKey("m", "other", "user", 100, 0.7),
		"user":        CacheKey("m", "system", "other", 100, 0.7),
		"max tokens":  CacheKey("m", "system", "user", 200, 0.7),
		"temperature": CacheKey("m", "system", "user", 100, 0.3),
		"boundary":    CacheKey("m", "systemuser", "", 100, 0.7),
	}
	for name, k := range variants {
		if k == base {
			t.Errorf("changing %s did not change the key", name)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(3, time.Hour)

	cache.Set(ctx, "key1", "value1")
	if v, ok := cache.Get(ctx, "key1"); !ok || v != "value1" {
		t.Fatalf("Get(key1) = %q, %v", v, ok)
	}

	cache.Set(ctx, "key2", "value2")
	cache.Set(ctx, "key3", "value3")
	// touching key1 leaves key2 least recently used
	cache.Get(ctx, "key1")
	cache.Set(ctx, "key4", "value4")

	if _, ok := cache.Get(ctx, "key2"); ok {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, ok := cache.Get(ctx, k); !ok {
			t.Errorf("%s should still exist", k)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}
	if cache.Backend() != "memory" {
		t.Errorf("Backend() = %q", cache.Backend())
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(10, time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set(ctx, "key", "value")
	if _, ok := cache.Get(ctx, "key"); !ok {
		t.Fatal("should get key immediately")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get(ctx, "key"); ok {
		t.Error("should not get expired key")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", cache.Len())
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(2, time.Hour)

	cache.Set(ctx, "a", "1")
	cache.Set(ctx, "b", "2")
	cache.Set(ctx, "a", "updated")
	cache.Set(ctx, "c", "3") // evicts b, the least recently used

	if v, _ := cache.Get(ctx, "a"); v != "updated" {
		t.Errorf("Get(a) = %q, want updated", v)
	}
	if _, ok := cache.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(50, time.Hour)
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				k := fmt.Sprintf("k%d", (g*100+i)%70)
				cache.Set(ctx, k, "v")
				cache.Get(ctx, k)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	if cache.Len() > 50 {
		t.Errorf("Len() = %d exceeds max size", cache.Len())
	}
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	cache := NewRedisCache(client, "e2ekit:llm:", time.Hour, nil)
	ctx := context.Background()

	cache.Set(ctx, "key", "value")
	if _, ok := cache.Get(ctx, "key"); ok {
		t.Error("Get on an unreachable server should miss")
	}
	if cache.Backend() != "redis" {
		t.Errorf("Backend() = %q", cache.Backend())
	}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 50 * time.Millisecond}

	t.Run("disabled", func(t *testing.T) {
		c, closeFn := NewCache(ctx, config.LLMConfig{EnableCaching: false}, unreachable, nil)
		defer closeFn()
		if c != nil {
			t.Errorf("cache = %T, want nil", c)
		}
	})

	t.Run("memory", func(t *testing.T) {
		c, closeFn := NewCache(ctx, config.LLMConfig{EnableCaching: true, CacheBackend: "memory", CacheSize: 5, CacheTTL: time.Hour}, unreachable, nil)
		defer closeFn()
		if c == nil || c.Backend() != "memory" {
			t.Errorf("cache = %v, want memory", c)
		}
	})

	t.Run("redis unreachable falls back to memory", func(t *testing.T) {
		c, closeFn := NewCache(ctx, config.LLMConfig{EnableCaching: true, CacheBackend: "redis", CacheTTL: time.Hour}, unreachable, nil)
		defer closeFn()
		if c == nil || c.Backend() != "memory" {
			t.Errorf("cache = %v, want memory fallback", c)
		}
	})
}

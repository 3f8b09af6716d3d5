package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented TTL store. Misses are (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

type RedisCache struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, prefix: "garage-fit:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

const (
	keyWorkouts    = "workouts"
	keyStreak      = "streak"
	keyProgression = "progression"
	keyRecords     = "records"
	keyVariety     = "variety"
	keyGuilds      = "guilds"
	keyQuests      = "quests"
)

var allKeys = []string{keyWorkouts, keyStreak, keyProgression, keyRecords, keyVariety, keyGuilds, keyQuests}

// CachedProvider is a read-through cache over another Provider. Cache
// failures fall back to the inner provider.
type CachedProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, log: log.With("service", "StatsCache")}
}

// Invalidate drops every cached statistic of userID.
func (p *CachedProvider) Invalidate(ctx context.Context, userID uint) {
	keys := make([]string, len(allKeys))
	for i, k := range allKeys {
		keys[i] = cacheKey(userID, k)
	}
	if err := p.cache.Delete(ctx, keys...); err != nil {
		p.log.Warn("stats cache invalidate failed", "user_id", userID, "error", err)
	}
}

func (p *CachedProvider) WorkoutCounts(ctx context.Context, userID uint) (WorkoutCounts, error) {
	return readThrough(ctx, p, userID, keyWorkouts, func() (WorkoutCounts, error) {
		return p.inner.WorkoutCounts(ctx, userID)
	})
}

func (p *CachedProvider) CurrentStreak(ctx context.Context, userID uint) (int, error) {
	return readThrough(ctx, p, userID, keyStreak, func() (int, error) {
		return p.inner.CurrentStreak(ctx, userID)
	})
}

func (p *CachedProvider) Progression(ctx context.Context, userID uint) (Progression, error) {
	return readThrough(ctx, p, userID, keyProgression, func() (Progression, error) {
		return p.inner.Progression(ctx, userID)
	})
}

func (p *CachedProvider) PersonalRecordCount(ctx context.Context, userID uint) (int64, error) {
	return readThrough(ctx, p, userID, keyRecords, func() (int64, error) {
		return p.inner.PersonalRecordCount(ctx, userID)
	})
}

func (p *CachedProvider) DistinctActivityTypes(ctx context.Context, userID uint) (int64, error) {
	return readThrough(ctx, p, userID, keyVariety, func() (int64, error) {
		return p.inner.DistinctActivityTypes(ctx, userID)
	})
}

func (p *CachedProvider) GuildMemberships(ctx context.Context, userID uint) (int64, error) {
	return readThrough(ctx, p, userID, keyGuilds, func() (int64, error) {
		return p.inner.GuildMemberships(ctx, userID)
	})
}

func (p *CachedProvider) GuildQuestParticipations(ctx context.Context, userID uint) (int64, error) {
	return readThrough(ctx, p, userID, keyQuests, func() (int64, error) {
		return p.inner.GuildQuestParticipations(ctx, userID)
	})
}

func cacheKey(userID uint, name string) string {
	return fmt.Sprintf("stats:%d:%s", userID, name)
}

func readThrough[T any](ctx context.Context, p *CachedProvider, userID uint, name string, load func() (T, error)) (T, error) {
	key := cacheKey(userID, name)
	if raw, ok, err := p.cache.Get(ctx, key); err != nil {
		p.log.Warn("stats cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
			p.log.Warn("stats cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

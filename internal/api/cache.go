package api

import (
	"context"
	"time"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ResponseCache：已编码响应体的缓存，键为线上端点路径
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
	Flush(ctx context.Context)
}

const keyPrefix = "wilayah:"

// redisCache：多实例部署共享缓存
type redisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCache(rc *redis.Client, ttl time.Duration) ResponseCache {
	return &redisCache{rc: rc, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rc.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.L().Debug("redis_get_error", "key", key, "err", err)
		}
		metrics.ResponseCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.ResponseCacheHitsTotal.Inc()
	return b, true
}

func (c *redisCache) Set(ctx context.Context, key string, body []byte) {
	if err := c.rc.Set(ctx, keyPrefix+key, body, c.ttl).Err(); err != nil {
		logger.L().Debug("redis_set_error", "key", key, "err", err)
	}
}

// Flush：仅删除本服务前缀下的键，不影响同库其它数据
func (c *redisCache) Flush(ctx context.Context) {
	iter := c.rc.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	var batch []string
	n := 0
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			n += len(batch)
			c.rc.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		n += len(batch)
		c.rc.Del(ctx, batch...)
	}
	if err := iter.Err(); err != nil {
		logger.L().Error("redis_flush_error", "err", err)
		return
	}
	logger.L().Info("response_cache_flushed", "backend", "redis", "keys", n)
}

// memCache：单实例进程内缓存
type memCache struct {
	c *gocache.Cache
}

func NewMemCache(ttl time.Duration) ResponseCache {
	return &memCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		metrics.ResponseCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.ResponseCacheHitsTotal.Inc()
	return v.([]byte), true
}

func (m *memCache) Set(_ context.Context, key string, body []byte) {
	m.c.Set(key, body, gocache.DefaultExpiration)
}

func (m *memCache) Flush(context.Context) {
	m.c.Flush()
	logger.L().Info("response_cache_flushed", "backend", "memory")
}

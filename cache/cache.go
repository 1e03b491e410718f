package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/llm"
)

var ErrCacheMiss = errors.New("cache miss")

// Entry 缓存的结构化结果
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Model     string          `json:"model"`
	Usage     llm.ChatUsage   `json:"usage"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// ResultCache 结构化结果缓存接口
type ResultCache interface {
	// Get 未命中时返回 ErrCacheMiss
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// Hit tiers reported to the OnHit callback.
const (
	TierLocal = "local"
	TierRedis = "redis"
)

// Options 多级缓存配置
type Options struct {
	LocalMaxSize int
	LocalTTL     time.Duration
	RedisTTL     time.Duration
	KeyPrefix    string
	// OnHit/OnMiss 供指标采集使用，可为 nil
	OnHit  func(tier string)
	OnMiss func()
}

// OptionsFromConfig 从配置构建缓存选项
func OptionsFromConfig(cfg config.CacheConfig) Options {
	return Options{
		LocalMaxSize: cfg.LocalMaxSize,
		LocalTTL:     cfg.LocalTTL,
		RedisTTL:     cfg.RedisTTL,
		KeyPrefix:    cfg.KeyPrefix,
	}
}

// MultiLevelCache 多级缓存实现。rdb 为 nil 时只使用本地 LRU。
type MultiLevelCache struct {
	local  *LRUCache
	redis  redis.UniversalClient
	opts   Options
	logger *zap.Logger
}

var _ ResultCache = (*MultiLevelCache)(nil)

// NewMultiLevelCache 创建多级缓存
func NewMultiLevelCache(rdb redis.UniversalClient, opts Options, logger *zap.Logger) *MultiLevelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LocalMaxSize <= 0 {
		opts.LocalMaxSize = 1000
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "schemaforge:structure:"
	}
	return &MultiLevelCache{
		local:  NewLRUCache(opts.LocalMaxSize, opts.LocalTTL),
		redis:  rdb,
		opts:   opts,
		logger: logger.With(zap.String("component", "result_cache")),
	}
}

// Get 获取缓存：先查本地，再查 Redis 并回填
func (c *MultiLevelCache) Get(ctx context.Context, key string) (*Entry, error) {
	if entry, ok := c.local.Get(key); ok {
		c.hit(TierLocal)
		return entry, nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		switch {
		case err == nil:
			var entry Entry
			if err := json.Unmarshal(data, &entry); err == nil {
				c.local.Set(key, &entry)
				c.hit(TierRedis)
				return &entry, nil
			}
			c.logger.Warn("corrupt redis cache entry", zap.String("key", key))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("redis get error", zap.Error(err))
		}
	}

	if c.opts.OnMiss != nil {
		c.opts.OnMiss()
	}
	return nil, ErrCacheMiss
}

// Set 写入两级缓存
func (c *MultiLevelCache) Set(ctx context.Context, key string, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	c.local.Set(key, entry)

	if c.redis != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := c.redis.Set(ctx, c.redisKey(key), data, c.opts.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis set error", zap.Error(err))
			return err
		}
	}
	return nil
}

// Delete 删除两级缓存
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.local.Delete(key)
	if c.redis != nil {
		return c.redis.Del(ctx, c.redisKey(key)).Err()
	}
	return nil
}

func (c *MultiLevelCache) redisKey(key string) string {
	return c.opts.KeyPrefix + key
}

func (c *MultiLevelCache) hit(tier string) {
	c.logger.Debug("cache hit", zap.String("tier", tier))
	if c.opts.OnHit != nil {
		c.opts.OnHit(tier)
	}
}

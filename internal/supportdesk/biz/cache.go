package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/pkg/utils/json"
)

// AnswerCacheConfig 回答缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// CachedAnswer 缓存的回答内容。
type CachedAnswer struct {
	Answer     string              `json:"answer"`
	Intent     model.Intent        `json:"intent"`
	Confidence float64             `json:"confidence"`
	Sources    []model.ChunkSource `json:"sources"`
}

// AnswerCache 基于 Redis 的回答缓存。
// 缓存只在无会话历史的首问时使用，历史会改变回答内容。
// Redis 不可用时所有操作静默降级，不影响主流程。
type AnswerCache struct {
	redis  *goredis.Client
	config *AnswerCacheConfig
}

// NewAnswerCache 创建回答缓存实例。
func NewAnswerCache(redis *goredis.Client, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       time.Hour,
			KeyPrefix: "supportdesk:answer:",
		}
	}
	return &AnswerCache{redis: redis, config: config}
}

// cacheKey 基于规范化问题生成缓存键。
func (c *AnswerCache) cacheKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	hash := sha256.Sum256([]byte(normalized))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 查询缓存。未命中或缓存不可用时返回 nil。
func (c *AnswerCache) Get(ctx context.Context, question string) *CachedAnswer {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	key := c.cacheKey(question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("读取回答缓存失败", "error", err.Error(), "key", key)
		}
		return nil
	}

	var cached CachedAnswer
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warnw("回答缓存反序列化失败，删除损坏条目", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	logger.Infow("回答缓存命中", "key", key, "answer_length", len(cached.Answer))
	return &cached
}

// Set 写入缓存。失败只记录日志。
func (c *AnswerCache) Set(ctx context.Context, question string, answer *CachedAnswer) {
	if !c.config.Enabled || c.redis == nil {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		logger.Warnw("回答缓存序列化失败", "error", err.Error())
		return
	}

	key := c.cacheKey(question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("写入回答缓存失败", "error", err.Error(), "key", key)
		return
	}

	logger.Debugw("回答已缓存", "key", key, "ttl", c.config.TTL)
}

// Clear 清除所有回答缓存条目。
func (c *AnswerCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("删除缓存键失败", "key", iter.Val(), "error", err.Error())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("回答缓存已清空", "deleted", deleted)
	return nil
}

// Enabled 返回缓存是否启用。
func (c *AnswerCache) Enabled() bool {
	return c.config.Enabled && c.redis != nil
}

package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/utils/json"
)

// DefaultCacheKeyPrefix 答案缓存键的命名空间。
const DefaultCacheKeyPrefix = "faq:"

// KVStore 答案缓存依赖的键值存储。
type KVStore interface {
	// Get 读取键值，不存在时返回 ErrKeyNotFound。
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 写入键值，ttl <= 0 表示不过期。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Keys 返回匹配 glob 模式的全部键。
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Delete 删除键并返回实际删除数量。
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Ping 检查存储是否可达。
	Ping(ctx context.Context) error
}

// AnswerCacheConfig 答案缓存配置。
type AnswerCacheConfig struct {
	// TTL 默认过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 以规范化问题为键缓存答案。
// 所有方法都不返回错误：存储故障、序列化失败都视为缓存为空。
type AnswerCache struct {
	store  KVStore
	config *AnswerCacheConfig
}

// cachedAnswer 缓存中保存的内容，不含 cached 与 response_time_ms。
type cachedAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	TokensUsed int      `json:"tokens_used"`
}

// NewAnswerCache 创建答案缓存。store 为 nil 时缓存始终未命中。
func NewAnswerCache(store KVStore, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{TTL: time.Hour}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultCacheKeyPrefix
	}
	return &AnswerCache{store: store, config: config}
}

// Key 计算问题的缓存键：前缀 + sha256(lower(trim(question))) 的十六进制。
func (c *AnswerCache) Key(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Get 读取缓存的答案。
func (c *AnswerCache) Get(ctx context.Context, question string) (*AnswerPackage, bool) {
	if c.store == nil {
		return nil, false
	}

	key := c.Key(question)
	data, err := c.read(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheUnavailable) {
			logger.Warnw("failed to read answer cache", "key", key, "error", err.Error())
		}
		return nil, false
	}

	var cached cachedAnswer
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warnw("malformed cached answer, deleting", "key", key, "error", err.Error())
		// 删除损坏的缓存
		if _, delErr := c.store.Delete(ctx, key); delErr != nil {
			logger.Warnw("failed to delete malformed cached answer", "key", key, "error", delErr.Error())
		}
		return nil, false
	}

	return &AnswerPackage{
		Answer:     cached.Answer,
		Sources:    cached.Sources,
		TokensUsed: cached.TokensUsed,
		Cached:     true,
	}, true
}

// Set 写入缓存，ttl <= 0 时使用配置的 TTL。写入失败返回 false。
func (c *AnswerCache) Set(ctx context.Context, question string, pkg *AnswerPackage, ttl time.Duration) bool {
	if c.store == nil || pkg == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.config.TTL
	}

	key := c.Key(question)
	data, err := json.Marshal(&cachedAnswer{
		Answer:     pkg.Answer,
		Sources:    pkg.Sources,
		TokensUsed: pkg.TokensUsed,
	})
	if err != nil {
		logger.Warnw("failed to encode answer for cache", "key", key, "error", err.Error())
		return false
	}

	if err := c.write(ctx, key, data, ttl); err != nil {
		logger.Warnw("failed to write answer cache", "key", key, "error", err.Error())
		return false
	}
	logger.Debugw("cached answer", "key", key, "ttl", ttl.String())
	return true
}

// read 读取原始值。键不存在时返回 ErrKeyNotFound，其余存储错误包装为 ErrCacheUnavailable。
func (c *AnswerCache) read(ctx context.Context, key string) ([]byte, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: get %s: %w", ErrCacheUnavailable, key, err)
	}
	return data, err
}

func (c *AnswerCache) write(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrCacheUnavailable, key, err)
	}
	return nil
}

// Clear 删除命名空间下的全部键并返回删除数量，存储不可达时返回 0。
func (c *AnswerCache) Clear(ctx context.Context) int64 {
	if c.store == nil {
		return 0
	}

	keys, err := c.store.Keys(ctx, c.config.KeyPrefix+"*")
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
		logger.Warnw("failed to list answer cache keys", "error", err.Error())
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	deleted, err := c.store.Delete(ctx, keys...)
	if err != nil {
		logger.Warnw("failed to clear answer cache", "keys", len(keys), "error", err.Error())
		return 0
	}
	logger.Infow("cleared answer cache", "deleted_count", deleted)
	return deleted
}

// Ping 报告缓存存储是否可达。
func (c *AnswerCache) Ping(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	if err := c.store.Ping(ctx); err != nil {
		logger.Warnw("answer cache ping failed", "error", err.Error())
		return false
	}
	return true
}

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-faq/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀，需与答案缓存前缀区分。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour, // Embedding 结果相对稳定，可以缓存更长时间
		KeyPrefix: "emb:",
	}
}

// CachedEmbeddingProvider 为 Embedding Provider 增加 Redis 缓存。
// Redis 不可用时透明回退到底层 provider。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    goredis.UniversalClient
	config   *EmbeddingCacheConfig
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis goredis.UniversalClient,
	config *EmbeddingCacheConfig,
) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// cacheKey 基于模型名称和文本生成缓存键（使用 SHA256 哈希）。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.provider.Name() + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

func (c *CachedEmbeddingProvider) enabled() bool {
	return c.config.Enabled && c.redis != nil
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Embed 批量生成 Embedding，只为未命中缓存的文本调用底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.enabled() || len(texts) == 0 {
		return c.provider.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	embeddings := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	// 1. 批量读取缓存
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("embedding cache read failed, falling back to provider", "error", err.Error())
		values = make([]any, len(texts))
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			var emb []float32
			if err := json.Unmarshal([]byte(s), &emb); err == nil {
				embeddings[i] = emb
				continue
			}
			// 反序列化失败，删除损坏的缓存
			_ = c.redis.Del(ctx, keys[i]).Err()
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	// 2. 计算未缓存的 Embedding
	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(missTexts))
	computed, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	// 3. 填充结果并写回缓存，写入失败不影响结果
	pipe := c.redis.Pipeline()
	for j, idx := range missIdx {
		embeddings[idx] = computed[j]
		data, err := json.Marshal(computed[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error())
	}

	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name()
}

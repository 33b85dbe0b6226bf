package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
)

// scanBatch 每次 SCAN 返回的建议数量。
const scanBatch = 100

// RedisKV 基于 go-redis 的 biz.KVStore 实现。
type RedisKV struct {
	client goredis.UniversalClient
}

var _ biz.KVStore = (*RedisKV)(nil)

// NewRedisKV 创建 Redis 键值存储。
func NewRedisKV(client goredis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

// Get 读取键值，键不存在时返回 biz.ErrKeyNotFound。
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, biz.ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set 写入键值，ttl <= 0 时不过期。
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Keys 以 SCAN 迭代匹配 pattern 的键，避免 KEYS 阻塞服务端。
func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Delete 删除键并返回实际删除数量。
func (r *RedisKV) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

// Ping 检查 Redis 是否可达。
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package biz

import (
	"errors"

	"github.com/kart-io/sentinel-faq/pkg/llm"
)

var (
	// ErrCacheUnavailable 答案缓存不可用，调用方总是降级为未命中。
	ErrCacheUnavailable = errors.New("answer cache unavailable")

	// ErrRetrievalUnavailable 向量存储不可用。检索时降级为空上下文，索引时返回给调用方。
	ErrRetrievalUnavailable = errors.New("retrieval store unavailable")

	// ErrGenerationFailure 重试耗尽后仍无法生成答案。
	ErrGenerationFailure = errors.New("answer generation failed")

	// ErrConfiguration 供应商选择或注册等配置错误。
	ErrConfiguration = llm.ErrConfiguration

	// ErrQueryLogUnavailable 查询日志未启用或数据库不可达。
	ErrQueryLogUnavailable = errors.New("query log unavailable")

	// ErrKeyNotFound KVStore 中不存在该键。
	ErrKeyNotFound = errors.New("key not found")
)

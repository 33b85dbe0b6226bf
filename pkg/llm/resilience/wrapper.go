package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/httpclient"
)

// ResilientEmbeddingProvider 带韧性功能的 Embedding Provider 包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(
	provider llm.EmbeddingProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientEmbeddingProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		// 向量化失败多为网络抖动，只重试可恢复的错误
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.Embed(ctx, texts)
		return err
	})
	return result, err
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		result, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return result, err
}

// Name 返回底层供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError 判断错误是否属于可恢复的网络或服务端错误。
func IsRetryableError(err error) bool {
	if err == nil || !RetryUnlessAborted(err) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= http.StatusInternalServerError,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusRequestTimeout:
			logger.Debugw("retryable status", "status", statusErr.StatusCode)
			return true
		default:
			return false
		}
	}

	// 网络相关错误可重试
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	logger.Debugw("error not retryable", "error", err.Error())
	return false
}

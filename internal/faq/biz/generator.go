package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/llm/resilience"
)

// NoContextMarker 检索为空时写入提示词的上下文占位文本。
const NoContextMarker = "No context found."

// DefaultMaxTokens 生成答案的默认 token 上限。
const DefaultMaxTokens = 1024

// GeneratorConfig 答案生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 系统提示词。
	SystemPrompt string
	// MaxTokens 单次生成的 token 上限。
	MaxTokens int
	// Retry 供应商调用的重试策略，为 nil 时使用 3 次、1s 起步的指数退避。
	Retry *resilience.RetryConfig
	// CircuitBreaker 熔断配置，为 nil 时不启用熔断。
	CircuitBreaker *resilience.CircuitBreakerConfig
}

// GenerationResult 一次生成的结果。
type GenerationResult struct {
	Answer     string
	TokensUsed int
	Elapsed    time.Duration
	Provider   string
	Model      string
}

// AnswerGenerator 以统一的重试策略调用注册表中当前选中的供应商。
type AnswerGenerator struct {
	registry *llm.Registry
	config   *GeneratorConfig
	breaker  *resilience.CircuitBreaker
}

// NewAnswerGenerator 创建答案生成器。
func NewAnswerGenerator(registry *llm.Registry, config *GeneratorConfig) *AnswerGenerator {
	if config == nil {
		config = &GeneratorConfig{}
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Retry == nil {
		config.Retry = &resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		}
	}
	// 除上下文取消与熔断打开外，所有供应商错误都重试
	config.Retry.RetryableErrors = resilience.RetryUnlessAborted

	g := &AnswerGenerator{
		registry: registry,
		config:   config,
	}
	if config.CircuitBreaker != nil {
		g.breaker = resilience.NewCircuitBreaker(config.CircuitBreaker)
	}
	return g
}

// Registry 返回生成器使用的供应商注册表。
func (g *AnswerGenerator) Registry() *llm.Registry {
	return g.registry
}

// CircuitBreaker 返回熔断器，未启用时为 nil。
func (g *AnswerGenerator) CircuitBreaker() *resilience.CircuitBreaker {
	return g.breaker
}

// BuildUserMessage 组装包含上下文与问题的用户消息。
func BuildUserMessage(question, contextText string) string {
	if contextText == "" {
		contextText = NoContextMarker
	}
	return fmt.Sprintf("Knowledge base context:\n%s\n\nUser question: %s\n\nAnswer the question using only the information from the context.",
		contextText, question)
}

// Generate 生成答案。没有可用供应商时不重试，重试耗尽后返回 ErrGenerationFailure。
func (g *AnswerGenerator) Generate(ctx context.Context, question, contextText string) (*GenerationResult, error) {
	provider, ok := g.registry.Active()
	if !ok {
		return nil, fmt.Errorf("%w: no active generation provider: %w", ErrGenerationFailure, ErrConfiguration)
	}

	userMessage := BuildUserMessage(question, contextText)
	start := time.Now()

	var (
		gen      *llm.Generation
		attempts int
	)
	call := func() error {
		attempts++
		var err error
		gen, err = provider.Generate(ctx, userMessage, g.config.SystemPrompt, g.config.MaxTokens, "")
		if err == nil && gen == nil {
			err = fmt.Errorf("provider %s returned an empty result", provider.Name())
		}
		return err
	}

	retry := *g.config.Retry
	onRetry := g.config.Retry.OnRetry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnw("generation attempt failed, retrying",
			"provider", provider.Name(),
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	var err error
	if g.breaker != nil {
		err = resilience.RetryWithCircuitBreaker(ctx, &retry, g.breaker, call)
	} else {
		err = resilience.RetryWithBackoff(ctx, &retry, call)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s failed after %d attempt(s): %w",
			ErrGenerationFailure, provider.Name(), attempts, err)
	}

	model := gen.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	result := &GenerationResult{
		Answer:     gen.Text,
		TokensUsed: gen.TokensUsed,
		Elapsed:    time.Since(start),
		Provider:   provider.Name(),
		Model:      model,
	}
	logger.Infow("answer generated",
		"provider", result.Provider,
		"model", result.Model,
		"tokens_used", result.TokensUsed,
		"attempts", attempts,
		"elapsed", result.Elapsed.String(),
	)
	return result, nil
}

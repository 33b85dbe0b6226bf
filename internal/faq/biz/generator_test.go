package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/llm/resilience"
)

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestGenerator(t *testing.T, providers ...*fakeProvider) (*AnswerGenerator, *llm.Registry) {
	t.Helper()
	registry := llm.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	if len(providers) > 0 {
		require.NoError(t, registry.Select(providers[0].Name()))
	}
	gen := NewAnswerGenerator(registry, &GeneratorConfig{
		SystemPrompt: "You are a helpful FAQ assistant.",
		MaxTokens:    256,
		Retry:        fastRetry(),
	})
	return gen, registry
}

func TestBuildUserMessage(t *testing.T) {
	msg := BuildUserMessage("What is the price?", "[source: pricing.md]\nPro is $9.")
	assert.True(t, containsAll(msg, "[source: pricing.md]\nPro is $9.", "What is the price?"))

	empty := BuildUserMessage("What is the price?", "")
	assert.Contains(t, empty, NoContextMarker)
}

func TestAnswerGenerator_Generate(t *testing.T) {
	p := newFakeProvider("anthropic")
	gen, _ := newTestGenerator(t, p)

	res, err := gen.Generate(context.Background(), "How much is Pro?", "Pro is $9.")
	require.NoError(t, err)
	assert.Equal(t, p.answer, res.Answer)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, "anthropic-model", res.Model)
	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, "You are a helpful FAQ assistant.", p.lastSystem)
	assert.Equal(t, 256, p.lastMaxToken)
	assert.Contains(t, p.lastMessage, "Pro is $9.")
}

func TestAnswerGenerator_RetriesTransientFailures(t *testing.T) {
	p := newFakeProvider("openai")
	p.failures = 2
	gen, _ := newTestGenerator(t, p)

	res, err := gen.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, p.answer, res.Answer)
	assert.Equal(t, 3, p.callCount())
}

func TestAnswerGenerator_ExhaustedRetries(t *testing.T) {
	p := newFakeProvider("openai")
	p.failures = 10
	gen, _ := newTestGenerator(t, p)

	res, err := gen.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.ErrorIs(t, err, p.err)
	assert.Equal(t, 3, p.callCount())
}

func TestAnswerGenerator_NoActiveProvider(t *testing.T) {
	gen, _ := newTestGenerator(t)

	_, err := gen.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAnswerGenerator_SwitchProvider(t *testing.T) {
	first := newFakeProvider("anthropic")
	second := newFakeProvider("deepseek")
	second.answer = "from deepseek"
	gen, registry := newTestGenerator(t, first, second)

	require.NoError(t, registry.Select("deepseek"))
	res, err := gen.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "from deepseek", res.Answer)
	assert.Zero(t, first.callCount())

	unconfigured := newFakeProvider("ollama")
	unconfigured.configured = false
	registry.Register(unconfigured)
	err = registry.Select("ollama")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "deepseek", registry.ActiveName(), "选择失败时保持原供应商")
}

func TestAnswerGenerator_ContextCanceled(t *testing.T) {
	p := newFakeProvider("anthropic")
	p.failures = 10
	p.err = context.Canceled
	gen, _ := newTestGenerator(t, p)

	_, err := gen.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, p.callCount(), "取消不重试")
}

func TestAnswerGenerator_CircuitBreaker(t *testing.T) {
	p := newFakeProvider("anthropic")
	p.failures = 100
	registry := llm.NewRegistry()
	registry.Register(p)
	require.NoError(t, registry.Select("anthropic"))

	gen := NewAnswerGenerator(registry, &GeneratorConfig{
		Retry: fastRetry(),
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			MaxFailures:      2,
			Timeout:          time.Minute,
			HalfOpenMaxCalls: 1,
		},
	})
	require.NotNil(t, gen.CircuitBreaker())

	_, err := gen.Generate(context.Background(), "q", "")
	require.ErrorIs(t, err, ErrGenerationFailure)
	calls := p.callCount()
	assert.LessOrEqual(t, calls, 2, "熔断打开后不再调用供应商")

	_, err = gen.Generate(context.Background(), "q", "")
	require.ErrorIs(t, err, ErrGenerationFailure)
	assert.Equal(t, calls, p.callCount())
}

func TestAnswerGenerator_ChainsConfiguredOnRetry(t *testing.T) {
	p := newFakeProvider("openai")
	p.failures = 2

	var attempts []int
	retry := fastRetry()
	retry.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}

	registry := llm.NewRegistry()
	registry.Register(p)
	require.NoError(t, registry.Select("openai"))
	gen := NewAnswerGenerator(registry, &GeneratorConfig{Retry: retry})

	_, err := gen.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

// Package llm 提供统一的 LLM 供应商抽象层。
// 生成（Generation）与向量化（Embedding）可使用不同供应商。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// GenerationProvider 定义文本生成供应商接口。
type GenerationProvider interface {
	// Name 返回供应商名称。
	Name() string

	// DefaultModel 返回 model 参数为空时使用的模型。
	DefaultModel() string

	// IsConfigured 报告供应商是否具备调用所需的凭据或地址。
	IsConfigured() bool

	// Generate 以单条用户消息和系统提示生成文本。
	// model 为空时使用 DefaultModel。
	Generate(ctx context.Context, userMessage, systemPrompt string, maxTokens int, model string) (*Generation, error)
}

// Generation 一次生成调用的结果。
type Generation struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GenerationProviderFactory 生成供应商工厂函数类型。
type GenerationProviderFactory func(config map[string]any) (GenerationProvider, error)

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// factories 供应商工厂注册表，由各供应商包在 init 中填充。
var factories = &factoryRegistry{
	generation: make(map[string]GenerationProviderFactory),
	embedding:  make(map[string]EmbeddingProviderFactory),
}

type factoryRegistry struct {
	mu         sync.RWMutex
	generation map[string]GenerationProviderFactory
	embedding  map[string]EmbeddingProviderFactory
}

// RegisterGenerationProvider 注册生成供应商工厂。
func RegisterGenerationProvider(name string, factory GenerationProviderFactory) {
	factories.mu.Lock()
	defer factories.mu.Unlock()
	factories.generation[name] = factory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	factories.mu.Lock()
	defer factories.mu.Unlock()
	factories.embedding[name] = factory
}

// NewGenerationProvider 根据名称创建生成供应商实例。
func NewGenerationProvider(name string, config map[string]any) (GenerationProvider, error) {
	factories.mu.RLock()
	factory, ok := factories.generation[name]
	factories.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown generation provider: %s", name)
	}
	return factory(config)
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	factories.mu.RLock()
	factory, ok := factories.embedding[name]
	factories.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// ListGenerationProviders 列出所有已注册的生成供应商名称（已排序）。
func ListGenerationProviders() []string {
	factories.mu.RLock()
	defer factories.mu.RUnlock()

	names := make([]string, 0, len(factories.generation))
	for name := range factories.generation {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

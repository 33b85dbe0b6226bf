// Package ollama 提供 Ollama LLM 供应商实现，同时支持生成与向量化。
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/httpclient"
)

const ProviderName = "ollama"

// DefaultModel 未指定模型时使用的生成模型。
const DefaultModel = "llama3.2"

func init() {
	llm.RegisterGenerationProvider(ProviderName, NewProvider)
	llm.RegisterEmbeddingProvider(ProviderName, NewEmbeddingProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  DefaultModel,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

func configFromMap(configMap map[string]any) *Config {
	cfg := DefaultConfig()

	// base_url 显式置空表示未部署 Ollama
	if v, ok := configMap["base_url"].(string); ok {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	return cfg
}

// NewProvider 从配置 map 创建 Ollama 生成供应商。
func NewProvider(configMap map[string]any) (llm.GenerationProvider, error) {
	return NewProviderWithConfig(configFromMap(configMap)), nil
}

// NewEmbeddingProvider 从配置 map 创建 Ollama 向量化供应商。
func NewEmbeddingProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := configFromMap(configMap)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama: base_url 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// DefaultModel 返回默认生成模型。
func (p *Provider) DefaultModel() string {
	return p.config.ChatModel
}

// IsConfigured 在设置了服务地址时返回 true。
func (p *Provider) IsConfigured() bool {
	return p.config.BaseURL != ""
}

// embedRequest Ollama embed API 请求体。
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse Ollama embed API 响应体。
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/embed", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	var embedResp embedResponse
	if err := p.client.PostJSON(req, embedRequest{Model: p.config.EmbedModel, Input: texts}, &embedResp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: 期望 %d 个向量嵌入，实际返回 %d 个", len(texts), len(embedResp.Embeddings))
	}

	return embedResp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// chatRequest Ollama chat API 请求体。
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse Ollama chat API 响应体。
type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate 根据用户消息和系统提示生成文本。
func (p *Provider) Generate(ctx context.Context, userMessage, systemPrompt string, maxTokens int, model string) (*llm.Generation, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", llm.ErrProviderNotConfigured, ProviderName)
	}
	if model == "" {
		model = p.config.ChatModel
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(llm.RoleSystem), Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: string(llm.RoleUser), Content: userMessage})

	reqBody := chatRequest{Model: model, Messages: messages}
	if maxTokens > 0 {
		reqBody.Options = map[string]any{"num_predict": maxTokens}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/chat", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	var chatResp chatResponse
	if err := p.client.PostJSON(req, reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if chatResp.Message.Content == "" {
		return nil, fmt.Errorf("ollama: 未返回响应内容")
	}

	return &llm.Generation{
		Text:       chatResp.Message.Content,
		TokensUsed: chatResp.PromptEvalCount + chatResp.EvalCount,
		Model:      model,
	}, nil
}

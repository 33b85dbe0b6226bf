// Package openai 提供 OpenAI LLM 供应商实现。
// 同时支持 OpenAI API 和兼容 OpenAI API 的服务（如 Azure OpenAI、LocalAI 等）。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/sentinel-faq/pkg/llm/openai"
//	import "github.com/kart-io/sentinel-faq/pkg/llm"
//
//	// 生成
//	gen, err := llm.NewGenerationProvider("openai", map[string]any{
//	    "api_key": "your-api-key",
//	})
//
//	// 向量化
//	embedder, err := llm.NewEmbeddingProvider("openai", map[string]any{
//	    "api_key":     "your-api-key",
//	    "embed_model": "text-embedding-3-small",
//	})
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

// DefaultModel 未指定模型时使用的生成模型。
const DefaultModel = "gpt-3.5-turbo"

func init() {
	llm.RegisterGenerationProvider(ProviderName, NewProvider)
	llm.RegisterEmbeddingProvider(ProviderName, NewEmbeddingProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，默认为 OpenAI 官方地址。
	// 可设置为兼容 API 地址（如 Azure OpenAI、LocalAI 等）。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  DefaultModel,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider OpenAI 供应商实现，同时提供生成与向量化。
type Provider struct {
	config *Config
	client *httpclient.Client
}

func configFromMap(configMap map[string]any) *Config {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
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
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	return cfg
}

// NewProvider 从配置 map 创建 OpenAI 生成供应商。
// 缺少 api_key 时以未配置状态返回。
func NewProvider(configMap map[string]any) (llm.GenerationProvider, error) {
	return NewProviderWithConfig(configFromMap(configMap)), nil
}

// NewEmbeddingProvider 从配置 map 创建 OpenAI 向量化供应商。
func NewEmbeddingProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := configFromMap(configMap)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
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

// IsConfigured 在设置了 API 密钥时返回 true。
func (p *Provider) IsConfigured() bool {
	return p.config.APIKey != ""
}

// embeddingRequest OpenAI embedding API 请求体。
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse OpenAI embedding API 响应体。
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embeddings", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	p.setHeaders(req)

	var embedResp embeddingResponse
	if err := p.client.PostJSON(req, embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &embedResp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	// 按 index 排序确保顺序正确
	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("openai: 缺少第 %d 个向量嵌入", i)
		}
	}

	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

// chatRequest OpenAI chat API 请求体。
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI chat API 响应体。
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	p.setHeaders(req)

	var chatResp chatResponse
	reqBody := chatRequest{Model: model, Messages: messages, MaxTokens: maxTokens}
	if err := p.client.PostJSON(req, reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: 未返回响应内容")
	}

	if chatResp.Model != "" {
		model = chatResp.Model
	}
	return &llm.Generation{
		Text:       chatResp.Choices[0].Message.Content,
		TokensUsed: chatResp.Usage.TotalTokens,
		Model:      model,
	}, nil
}

// setHeaders 设置请求头。
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
}

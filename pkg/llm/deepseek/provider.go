// Package deepseek 提供 DeepSeek LLM 供应商实现。
// DeepSeek API 兼容 OpenAI 格式，但有自己的特定模型。
package deepseek

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/httpclient"
)

// ProviderName 是 DeepSeek 供应商的名称标识符
const ProviderName = "deepseek"

// DefaultModel 未指定模型时使用的模型。
const DefaultModel = "deepseek-chat"

func init() {
	llm.RegisterGenerationProvider(ProviderName, NewProvider)
}

// Config DeepSeek 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"api_key" mapstructure:"api_key"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.deepseek.com",
		ChatModel:  DefaultModel,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider DeepSeek 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 DeepSeek 供应商。
func NewProvider(configMap map[string]any) (llm.GenerationProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
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

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 DeepSeek 供应商。
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

// DefaultModel 返回默认模型。
func (p *Provider) DefaultModel() string {
	return p.config.ChatModel
}

// IsConfigured 在设置了 API 密钥时返回 true。
func (p *Provider) IsConfigured() bool {
	return p.config.APIKey != ""
}

// chatRequest DeepSeek chat API 请求体（兼容 OpenAI 格式）。
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

// chatResponse DeepSeek chat API 响应体。
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
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
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	var chatResp chatResponse
	if err := p.client.PostJSON(req, chatRequest{Model: model, Messages: messages, MaxTokens: maxTokens}, &chatResp); err != nil {
		return nil, fmt.Errorf("deepseek: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("deepseek: 未返回响应内容")
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

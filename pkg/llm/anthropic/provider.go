// Package anthropic 提供 Anthropic Messages API 生成供应商实现。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/sentinel-faq/pkg/llm/anthropic"
//
//	provider, err := llm.NewGenerationProvider("anthropic", map[string]any{
//	    "api_key": os.Getenv("ANTHROPIC_API_KEY"),
//	})
//	gen, err := provider.Generate(ctx, "How do I reset my password?", systemPrompt, 1024, "")
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/httpclient"
)

// ProviderName 是 Anthropic 供应商的名称标识符
const ProviderName = "anthropic"

const (
	// DefaultModel 未指定模型时使用的模型。
	DefaultModel = "claude-3-haiku-20240307"

	apiVersion = "2023-06-01"
)

func init() {
	llm.RegisterGenerationProvider(ProviderName, NewProvider)
}

// Config Anthropic 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥，为空时供应商视为未配置。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// ChatModel 默认生成模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.anthropic.com",
		ChatModel:  DefaultModel,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Anthropic 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Anthropic 供应商。
// 缺少 api_key 不视为错误，供应商以未配置状态注册。
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

// NewProviderWithConfig 使用结构化配置创建 Anthropic 供应商。
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

// messagesRequest Anthropic messages API 请求体。
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse Anthropic messages API 响应体。
type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate 调用 messages API 生成文本。
func (p *Provider) Generate(ctx context.Context, userMessage, systemPrompt string, maxTokens int, model string) (*llm.Generation, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", llm.ErrProviderNotConfigured, ProviderName)
	}
	if model == "" {
		model = p.config.ChatModel
	}

	reqBody := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: string(llm.RoleUser), Content: userMessage}},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	var resp messagesResponse
	if err := p.client.PostJSON(req, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("anthropic: 未返回响应内容")
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return &llm.Generation{
		Text:       sb.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Model:      model,
	}, nil
}

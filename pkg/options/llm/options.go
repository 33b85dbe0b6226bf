// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Provider names known to the options layer.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderOllama    = "ollama"
)

// ProviderOptions 定义单个 LLM 供应商配置。
type ProviderOptions struct {
	// BaseURL API 基础地址，为空时使用供应商默认地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 生成模型名称，为空时使用供应商默认模型。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// EmbeddingOptions 定义向量化配置。
type EmbeddingOptions struct {
	// Provider 向量化供应商（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// Model 向量模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Dimension 向量维度，需与模型输出一致。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// CacheEnabled 是否在 Redis 中缓存向量结果。
	CacheEnabled bool `json:"cache-enabled" mapstructure:"cache-enabled"`

	// CacheTTL 向量缓存过期时间。
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

// Options 汇总生成与向量化供应商配置。
type Options struct {
	// Provider 启动时选中的生成供应商。
	Provider string `json:"provider" mapstructure:"provider"`

	Anthropic *ProviderOptions  `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    *ProviderOptions  `json:"openai" mapstructure:"openai"`
	DeepSeek  *ProviderOptions  `json:"deepseek" mapstructure:"deepseek"`
	Ollama    *ProviderOptions  `json:"ollama" mapstructure:"ollama"`
	Embedding *EmbeddingOptions `json:"embedding" mapstructure:"embedding"`
}

// NewProviderOptions 创建默认供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// NewEmbeddingOptions 创建默认向量化配置。
func NewEmbeddingOptions() *EmbeddingOptions {
	return &EmbeddingOptions{
		Provider:     ProviderOllama,
		Model:        "nomic-embed-text",
		Dimension:    768, // nomic-embed-text dimension
		CacheEnabled: true,
		CacheTTL:     24 * time.Hour,
	}
}

// NewOptions 创建默认 LLM 配置。
func NewOptions() *Options {
	ollama := NewProviderOptions()
	ollama.BaseURL = "http://localhost:11434"

	return &Options{
		Provider:  ProviderAnthropic,
		Anthropic: NewProviderOptions(),
		OpenAI:    NewProviderOptions(),
		DeepSeek:  NewProviderOptions(),
		Ollama:    ollama,
		Embedding: NewEmbeddingOptions(),
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// Providers returns the generation provider options keyed by provider name.
func (o *Options) Providers() map[string]*ProviderOptions {
	return map[string]*ProviderOptions{
		ProviderAnthropic: o.Anthropic,
		ProviderOpenAI:    o.OpenAI,
		ProviderDeepSeek:  o.DeepSeek,
		ProviderOllama:    o.Ollama,
	}
}

// ProviderNames returns the sorted names of all generation providers.
func (o *Options) ProviderNames() []string {
	names := make([]string, 0, 4)
	for name := range o.Providers() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmbeddingConfigMap 返回向量化供应商的工厂配置，连接参数复用同名生成供应商。
func (o *Options) EmbeddingConfigMap() map[string]any {
	cfg := map[string]any{}
	if p, ok := o.Providers()[o.Embedding.Provider]; ok && p != nil {
		cfg = p.ToConfigMap()
	}
	cfg["embed_model"] = o.Embedding.Model
	return cfg
}

func (o *ProviderOptions) addFlags(fs *pflag.FlagSet, prefix, name string) {
	fs.StringVar(&o.BaseURL, prefix+"base-url", o.BaseURL, fmt.Sprintf("%s API base URL.", name))
	fs.StringVar(&o.APIKey, prefix+"api-key", o.APIKey, fmt.Sprintf("%s API key.", name))
	fs.StringVar(&o.Model, prefix+"model", o.Model, fmt.Sprintf("%s model name.", name))
	fs.DurationVar(&o.Timeout, prefix+"timeout", o.Timeout, fmt.Sprintf("%s request timeout.", name))
	fs.IntVar(&o.MaxRetries, prefix+"max-retries", o.MaxRetries, fmt.Sprintf("%s transport retries.", name))
}

// AddFlags adds flags for LLM options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Active generation provider (anthropic, openai, deepseek, ollama).")

	for name, po := range o.Providers() {
		if po != nil {
			po.addFlags(fs, p+name+".", name)
		}
	}

	if o.Embedding == nil {
		o.Embedding = NewEmbeddingOptions()
	}
	fs.StringVar(&o.Embedding.Provider, p+"embedding.provider", o.Embedding.Provider, "Embedding provider (ollama, openai).")
	fs.StringVar(&o.Embedding.Model, p+"embedding.model", o.Embedding.Model, "Embedding model name.")
	fs.IntVar(&o.Embedding.Dimension, p+"embedding.dimension", o.Embedding.Dimension, "Embedding vector dimension.")
	fs.BoolVar(&o.Embedding.CacheEnabled, p+"embedding.cache-enabled", o.Embedding.CacheEnabled, "Cache embeddings in Redis.")
	fs.DurationVar(&o.Embedding.CacheTTL, p+"embedding.cache-ttl", o.Embedding.CacheTTL, "Embedding cache TTL.")
}

// Complete fills missing sections and reads API keys from the environment.
func (o *Options) Complete() error {
	if o.Anthropic == nil {
		o.Anthropic = NewProviderOptions()
	}
	if o.OpenAI == nil {
		o.OpenAI = NewProviderOptions()
	}
	if o.DeepSeek == nil {
		o.DeepSeek = NewProviderOptions()
	}
	if o.Ollama == nil {
		o.Ollama = NewProviderOptions()
	}
	if o.Embedding == nil {
		o.Embedding = NewEmbeddingOptions()
	}

	// 如果 CLI 参数为空，从环境变量读取
	envKeys := map[string]string{
		ProviderAnthropic: "ANTHROPIC_API_KEY",
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderDeepSeek:  "DEEPSEEK_API_KEY",
	}
	for name, env := range envKeys {
		if po := o.Providers()[name]; po.APIKey == "" {
			po.APIKey = os.Getenv(env)
		}
	}
	return nil
}

// Validate validates the LLM options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if _, ok := o.Providers()[o.Provider]; !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %v", o.Provider, o.ProviderNames()))
	}
	for name, po := range o.Providers() {
		if po != nil && po.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("llm.%s.timeout must be positive", name))
		}
	}
	if o.Embedding != nil {
		if o.Embedding.Provider != ProviderOllama && o.Embedding.Provider != ProviderOpenAI {
			errs = append(errs, fmt.Errorf("llm.embedding.provider must be ollama or openai"))
		}
		if o.Embedding.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("llm.embedding.dimension must be positive"))
		}
	}
	return errs
}

// Package faq provides options for the FAQ answering pipeline.
package faq

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// DefaultSystemPrompt is the system prompt sent with every generation request.
const DefaultSystemPrompt = `You are a helpful customer support assistant for SmartTask, a project management product.
Answer the user's question using only the information in the provided knowledge base context.
If the context does not contain the answer, say that you do not know and suggest contacting support.
Keep answers concise and mention the source document when it helps.`

// Options contains the FAQ pipeline configuration.
type Options struct {
	// ChunkSize is the chunk window size in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// DocumentsDir is indexed at startup.
	DocumentsDir string `json:"documents-dir" mapstructure:"documents-dir"`

	// WatchDocuments re-indexes files changed under DocumentsDir.
	WatchDocuments bool `json:"watch-documents" mapstructure:"watch-documents"`

	// SystemPrompt is the instruction given to the generation provider.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// MaxTokens caps the generated answer length.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// MaxReconnectAttempts bounds automatic vector store reconnects.
	MaxReconnectAttempts int `json:"max-reconnect-attempts" mapstructure:"max-reconnect-attempts"`

	// ReconnectBaseDelay is the first reconnect back-off delay.
	ReconnectBaseDelay time.Duration `json:"reconnect-base-delay" mapstructure:"reconnect-base-delay"`

	Retry          *RetryOptions          `json:"retry" mapstructure:"retry"`
	CircuitBreaker *CircuitBreakerOptions `json:"circuit-breaker" mapstructure:"circuit-breaker"`
}

// RetryOptions 生成调用重试配置。
type RetryOptions struct {
	MaxAttempts  int           `json:"max-attempts" mapstructure:"max-attempts"`
	InitialDelay time.Duration `json:"initial-delay" mapstructure:"initial-delay"`
	MaxDelay     time.Duration `json:"max-delay" mapstructure:"max-delay"`
	Multiplier   float64       `json:"multiplier" mapstructure:"multiplier"`
}

// CircuitBreakerOptions 生成调用熔断配置。
type CircuitBreakerOptions struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	MaxFailures int           `json:"max-failures" mapstructure:"max-failures"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:            500,
		ChunkOverlap:         50,
		TopK:                 3,
		Collection:           "smarttask_docs",
		DocumentsDir:         "./documents",
		SystemPrompt:         DefaultSystemPrompt,
		MaxTokens:            1024,
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Second,
		Retry: &RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
		CircuitBreaker: &CircuitBreakerOptions{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     60 * time.Second,
		},
	}
}

// AddFlags adds flags for FAQ options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "faq."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Size of text chunks.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.StringVar(&o.DocumentsDir, p+"documents-dir", o.DocumentsDir, "Directory indexed at startup.")
	fs.BoolVar(&o.WatchDocuments, p+"watch-documents", o.WatchDocuments, "Re-index documents when files change.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt for answer generation.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens per generated answer.")
	fs.IntVar(&o.MaxReconnectAttempts, p+"max-reconnect-attempts", o.MaxReconnectAttempts, "Automatic vector store reconnect attempts.")
	fs.DurationVar(&o.ReconnectBaseDelay, p+"reconnect-base-delay", o.ReconnectBaseDelay, "Base delay of the reconnect back-off.")

	_ = o.Complete()
	fs.IntVar(&o.Retry.MaxAttempts, p+"retry.max-attempts", o.Retry.MaxAttempts, "Generation attempts per question.")
	fs.DurationVar(&o.Retry.InitialDelay, p+"retry.initial-delay", o.Retry.InitialDelay, "Delay before the first generation retry.")
	fs.DurationVar(&o.Retry.MaxDelay, p+"retry.max-delay", o.Retry.MaxDelay, "Upper bound of the generation retry delay.")
	fs.Float64Var(&o.Retry.Multiplier, p+"retry.multiplier", o.Retry.Multiplier, "Generation retry back-off multiplier.")
	fs.BoolVar(&o.CircuitBreaker.Enabled, p+"circuit-breaker.enabled", o.CircuitBreaker.Enabled, "Guard generation calls with a circuit breaker.")
	fs.IntVar(&o.CircuitBreaker.MaxFailures, p+"circuit-breaker.max-failures", o.CircuitBreaker.MaxFailures, "Consecutive failures that open the circuit.")
	fs.DurationVar(&o.CircuitBreaker.Timeout, p+"circuit-breaker.timeout", o.CircuitBreaker.Timeout, "Time the circuit stays open.")
}

// Validate validates the FAQ options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("faq.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("faq.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("faq.top-k must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("faq.collection is required"))
	}
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("faq.max-tokens must be positive"))
	}
	if o.MaxReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("faq.max-reconnect-attempts must not be negative"))
	}
	if o.Retry != nil && o.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("faq.retry.max-attempts must be positive"))
	}
	return errs
}

// Complete completes the FAQ options with defaults.
func (o *Options) Complete() error {
	defaults := NewOptions()
	if o.Retry == nil {
		o.Retry = defaults.Retry
	}
	if o.CircuitBreaker == nil {
		o.CircuitBreaker = defaults.CircuitBreaker
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}

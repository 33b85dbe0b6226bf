package faq

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-faq/pkg/infra/app/cliflag"
	cacheopts "github.com/kart-io/sentinel-faq/pkg/options/cache"
	faqopts "github.com/kart-io/sentinel-faq/pkg/options/faq"
	httpopts "github.com/kart-io/sentinel-faq/pkg/options/http"
	llmopts "github.com/kart-io/sentinel-faq/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-faq/pkg/options/logger"
	milvusopts "github.com/kart-io/sentinel-faq/pkg/options/milvus"
	querylogopts "github.com/kart-io/sentinel-faq/pkg/options/querylog"
	tracingopts "github.com/kart-io/sentinel-faq/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the FAQ server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// CacheOptions contains answer cache and Redis configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// LLMOptions contains generation and embedding provider configuration.
	LLMOptions *llmopts.Options `json:"llm" mapstructure:"llm"`

	// QueryLogOptions contains query history database configuration.
	QueryLogOptions *querylogopts.Options `json:"querylog" mapstructure:"querylog"`

	// FAQOptions contains chunking, retrieval and generation settings.
	FAQOptions *faqopts.Options `json:"faq" mapstructure:"faq"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:     httpopts.NewOptions(),
		LogOptions:      logopts.NewOptions(),
		TracingOptions:  tracingopts.NewOptions(),
		CacheOptions:    cacheopts.NewOptions(),
		MilvusOptions:   milvusopts.NewOptions(),
		LLMOptions:      llmopts.NewOptions(),
		QueryLogOptions: querylogopts.NewOptions(),
		FAQOptions:      faqopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.QueryLogOptions.AddFlags(fss.FlagSet("querylog"))
	o.FAQOptions.AddFlags(fss.FlagSet("faq"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := o.FAQOptions.Complete(); err != nil {
		return fmt.Errorf("faq: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.QueryLogOptions.Validate()...)
	errs = append(errs, o.FAQOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

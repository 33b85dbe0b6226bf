// Package cache 答案缓存选项。
package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
	redisopts "github.com/kart-io/sentinel-faq/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 答案缓存配置。禁用时不连接 Redis，所有问题直接走检索与生成。
type Options struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `json:"ttl" mapstructure:"ttl"`
	// KeyPrefix 清空缓存只删除该前缀下的键，不能包含通配符
	KeyPrefix string             `json:"key-prefix" mapstructure:"key-prefix"`
	Redis     *redisopts.Options `json:"redis" mapstructure:"redis"`
}

func NewOptions() *Options {
	return &Options{
		Enabled:   true,
		TTL:       time.Hour,
		KeyPrefix: "faq:",
		Redis:     redisopts.NewOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Cache generated answers in Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "How long a cached answer is served.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Prefix of answer cache keys.")

	_ = o.Complete()
	o.Redis.AddFlags(fs, prefixes...)
}

func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return nil
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	switch {
	case o.KeyPrefix == "":
		errs = append(errs, errors.New("cache.key-prefix is required"))
	case strings.ContainsAny(o.KeyPrefix, "*?[]"):
		errs = append(errs, errors.New("cache.key-prefix must not contain glob characters"))
	}
	if o.Enabled && o.Redis != nil {
		errs = append(errs, o.Redis.Validate()...)
	}
	return errs
}

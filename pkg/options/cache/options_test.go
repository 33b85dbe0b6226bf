package cache

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr int
	}{
		{"defaults", func(*Options) {}, 0},
		{"zero ttl", func(o *Options) { o.TTL = 0 }, 1},
		{"empty prefix", func(o *Options) { o.KeyPrefix = "" }, 1},
		{"glob prefix", func(o *Options) { o.KeyPrefix = "faq:*" }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := &Options{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	assert.NotNil(t, o.Redis, "AddFlags 补全 Redis 选项")
	assert.NotNil(t, fs.Lookup("cache.ttl"))
	assert.NotNil(t, fs.Lookup("cache.key-prefix"))
	assert.NotNil(t, fs.Lookup("redis.host"))
}

// Package milvusopts 向量库连接选项。
package milvusopts

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
)

// passwordEnv 未通过 flag 或配置文件提供密码时读取的环境变量。
const passwordEnv = "MILVUS_PASSWORD"

var _ options.IOptions = (*Options)(nil)

// Options Milvus 连接参数。集合名与向量维度属于业务配置，不在此处。
type Options struct {
	Address  string        `json:"address" mapstructure:"address"`
	Database string        `json:"database" mapstructure:"database"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"-" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  10 * time.Second,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus address, host:port.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database holding the documents collection.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus user, empty for unauthenticated servers.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password. Falls back to $"+passwordEnv+".")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Timeout for dialing Milvus.")
}

// Validate 校验参数，并在密码为空时从环境变量补全。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Password == "" {
		o.Password = os.Getenv(passwordEnv)
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, errors.New("milvus.address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("milvus.timeout must be positive"))
	}
	return errs
}

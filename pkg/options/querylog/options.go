// Package querylog provides options for the query history store.
package querylog

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
	mysqlopts "github.com/kart-io/sentinel-faq/pkg/options/mysql"
	postgresopts "github.com/kart-io/sentinel-faq/pkg/options/postgres"
)

var _ options.IOptions = (*Options)(nil)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Options 查询日志存储配置。
type Options struct {
	// Enabled 是否记录问答历史。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Driver 数据库驱动：postgres、mysql 或 sqlite。
	Driver string `json:"driver" mapstructure:"driver"`

	// SQLitePath sqlite 数据库文件路径，":memory:" 表示内存库。
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`

	Postgres *postgresopts.Options `json:"postgres" mapstructure:"postgres"`
	MySQL    *mysqlopts.Options    `json:"mysql" mapstructure:"mysql"`
}

// NewOptions 创建默认查询日志配置。
func NewOptions() *Options {
	return &Options{
		Enabled:    true,
		Driver:     DriverPostgres,
		SQLitePath: "_output/faq.db",
		Postgres:   postgresopts.NewOptions(),
		MySQL:      mysqlopts.NewOptions(),
	}
}

// AddFlags adds flags for query log options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "querylog."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Record answered questions in the query history.")
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Query history database driver (postgres, mysql, sqlite).")
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "SQLite database path when driver is sqlite.")

	if o.Postgres == nil {
		o.Postgres = postgresopts.NewOptions()
	}
	if o.MySQL == nil {
		o.MySQL = mysqlopts.NewOptions()
	}
	o.Postgres.AddFlags(fs, prefixes...)
	o.MySQL.AddFlags(fs, prefixes...)
}

// Validate validates the query log options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	switch o.Driver {
	case DriverPostgres:
		return o.Postgres.Validate()
	case DriverMySQL:
		return o.MySQL.Validate()
	case DriverSQLite:
		if o.SQLitePath == "" {
			return []error{fmt.Errorf("querylog.sqlite-path is required for sqlite driver")}
		}
		return nil
	default:
		return []error{fmt.Errorf("querylog.driver must be one of postgres, mysql, sqlite, got %q", o.Driver)}
	}
}

// Package postgres 查询日志使用 PostgreSQL 时的连接选项。
package postgres

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
)

const passwordEnv = "POSTGRES_PASSWORD"

var _ options.IOptions = (*Options)(nil)

// Options PostgreSQL 连接参数。
type Options struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"ssl-mode" mapstructure:"ssl-mode"`

	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	// LogLevel GORM 日志级别：1 silent, 2 error, 3 warn, 4 info
	LogLevel int `json:"log-level" mapstructure:"log-level"`
}

// NewOptions 返回默认参数。查询日志写入量小，连接池保持很小。
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		Database:              "smarttask_faq",
		SSLMode:               "disable",
		MaxIdleConnections:    2,
		MaxOpenConnections:    10,
		MaxConnectionLifeTime: 30 * time.Minute,
		LogLevel:              1,
	}
}

// DSN 返回 pgx 驱动使用的 key=value 连接串。
func (o *Options) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, o.Port, o.Username, quoteValue(o.Password), o.Database, o.SSLMode)
}

// quoteValue 按 libpq 规则引用取值，防止密码中的空格或引号注入其他参数。
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "postgres."
	fs.StringVar(&o.Host, p+"host", o.Host, "PostgreSQL host of the query log database.")
	fs.IntVar(&o.Port, p+"port", o.Port, "PostgreSQL port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "PostgreSQL user.")
	fs.StringVar(&o.Password, p+"password", o.Password, "PostgreSQL password. Falls back to $"+passwordEnv+".")
	fs.StringVar(&o.Database, p+"database", o.Database, "PostgreSQL database name.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL sslmode (disable, require, verify-full).")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Idle connections kept in the pool.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Upper bound of open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum lifetime of a pooled connection.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level: 1 silent, 2 error, 3 warn, 4 info.")
}

// Validate 校验参数，密码为空时从环境变量补全。
func (o *Options) Validate() []error {
	if o.Password == "" {
		o.Password = os.Getenv(passwordEnv)
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, errors.New("postgres.host is required"))
	}
	if o.Database == "" {
		errs = append(errs, errors.New("postgres.database is required"))
	}
	return errs
}

// Package mysql 查询日志使用 MySQL 时的连接选项。
package mysql

import (
	"errors"
	"fmt"
	"os"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-faq/pkg/options"
)

const passwordEnv = "MYSQL_PASSWORD"

var _ options.IOptions = (*Options)(nil)

// Options MySQL 连接参数。
type Options struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
}

func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		Database:              "smarttask_faq",
		MaxIdleConnections:    2,
		MaxOpenConnections:    10,
		MaxConnectionLifeTime: 30 * time.Minute,
		LogLevel:              1,
	}
}

// DSN 由驱动自身格式化，密码中的特殊字符无需手工转义。
func (o *Options) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = o.Username
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", o.Host, o.Port)
	cfg.DBName = o.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mysql."
	fs.StringVar(&o.Host, p+"host", o.Host, "MySQL host of the query log database.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MySQL port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MySQL user.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MySQL password. Falls back to $"+passwordEnv+".")
	fs.StringVar(&o.Database, p+"database", o.Database, "MySQL database name.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Idle connections kept in the pool.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Upper bound of open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum lifetime of a pooled connection.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level: 1 silent, 2 error, 3 warn, 4 info.")
}

func (o *Options) Validate() []error {
	if o.Password == "" {
		o.Password = os.Getenv(passwordEnv)
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, errors.New("mysql.host is required"))
	}
	if o.Database == "" {
		errs = append(errs, errors.New("mysql.database is required"))
	}
	return errs
}

// Package mysql opens the MySQL database backing the query log.
package mysql

import (
	"context"
	"fmt"

	mysqldriver "gorm.io/driver/mysql"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-faq/pkg/component/gormx"
	options "github.com/kart-io/sentinel-faq/pkg/options/mysql"
)

// New connects to MySQL and verifies the connection with ctx.
func New(ctx context.Context, opts *options.Options) (*gormx.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mysql options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid mysql options: %w", utilerrors.NewAggregate(errs))
	}

	return gormx.Open(ctx, "mysql", mysqldriver.Open(opts.DSN()), gormx.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
		LogLevel:              opts.LogLevel,
	})
}

// Package postgres opens the PostgreSQL database backing the query log.
package postgres

import (
	"context"
	"fmt"

	postgresdriver "gorm.io/driver/postgres"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-faq/pkg/component/gormx"
	options "github.com/kart-io/sentinel-faq/pkg/options/postgres"
)

// New connects to PostgreSQL and verifies the connection with ctx.
func New(ctx context.Context, opts *options.Options) (*gormx.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid postgres options: %w", utilerrors.NewAggregate(errs))
	}

	return gormx.Open(ctx, "postgres", postgresdriver.Open(opts.DSN()), gormx.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
		LogLevel:              opts.LogLevel,
	})
}

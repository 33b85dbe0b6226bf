// Package gormx opens GORM databases with the pool settings and logger
// shared by every SQL backend of the service.
package gormx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/sentinel-faq/pkg/component/storage"
)

const (
	pingTimeout   = 5 * time.Second
	slowThreshold = 200 * time.Millisecond
)

// PoolConfig holds connection pool and logging settings.
type PoolConfig struct {
	MaxIdleConnections    int
	MaxOpenConnections    int
	MaxConnectionLifeTime time.Duration
	LogLevel              int
}

// Client wraps gorm.DB and implements storage.Client.
type Client struct {
	name string
	db   *gorm.DB
}

var _ storage.Client = (*Client)(nil)

// Open opens a database through dialector, applies the pool settings and
// verifies the connection with ctx.
func Open(ctx context.Context, name string, dialector gorm.Dialector, cfg PoolConfig) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(LevelFromInt(cfg.LogLevel), slowThreshold, true),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	if cfg.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxConnectionLifeTime)
	}

	client := &Client{name: name, db: db}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// SqlDB returns the underlying sql.DB instance.
func (c *Client) SqlDB() (*sql.DB, error) {
	if c.db == nil {
		return nil, fmt.Errorf("gorm.DB is nil")
	}
	return c.db.DB()
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return c.name
}

// Ping verifies the database connection.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.SqlDB()
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.name, err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	sqlDB, err := c.SqlDB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close %s connection: %w", c.name, err)
	}
	return nil
}

// Stats returns database connection statistics.
func (c *Client) Stats() (sql.DBStats, error) {
	sqlDB, err := c.SqlDB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

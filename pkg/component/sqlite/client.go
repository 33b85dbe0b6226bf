// Package sqlite opens the embedded SQLite database used as a local query log.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"

	"github.com/kart-io/sentinel-faq/pkg/component/gormx"
)

// New opens the SQLite database at path, creating its parent directory when
// needed. ":memory:" opens a private in-memory database.
func New(ctx context.Context, path string, logLevel int) (*gormx.Client, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}

	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
		}
	}

	// SQLite 只允许单个写连接
	return gormx.Open(ctx, "sqlite", sqlite.Open(dsn), gormx.PoolConfig{
		MaxOpenConnections: 1,
		LogLevel:           logLevel,
	})
}

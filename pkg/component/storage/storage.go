// Package storage defines the contract shared by backing-store clients and a
// manager that pings and closes them as a group.
package storage

import (
	"context"
	"time"
)

// Client is the minimal surface every backing-store client exposes.
type Client interface {
	// Name returns the storage type identifier (redis, milvus, postgres...).
	Name() string
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}

// HealthStatus is the result of pinging one registered client.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   error         `json:"-"`
}

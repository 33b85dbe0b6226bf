package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/infra/pool"
)

// Manager tracks the storage clients opened at startup, pings them
// concurrently and closes them in reverse registration order.
// It is safe for concurrent use.
//
// Example usage:
//
//	mgr := storage.NewManager(healthPool)
//	_ = mgr.Register("redis", redisClient)
//	statuses := mgr.HealthCheckAll(ctx)
//	defer mgr.CloseAll()
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
	order   []string
	pool    *pool.Pool
}

// NewManager creates a new storage manager. Health checks run on p when it
// is non-nil, otherwise on plain goroutines.
func NewManager(p *pool.Pool) *Manager {
	return &Manager{
		clients: make(map[string]Client),
		pool:    p,
	}
}

// Register registers a storage client with the given name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" || client == nil {
		return ErrInvalidClient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; exists {
		return fmt.Errorf("%w: %s", ErrClientAlreadyExists, name)
	}
	m.clients[name] = client
	m.order = append(m.order, name)
	return nil
}

// Get returns the client registered under name.
func (m *Manager) Get(name string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, name)
	}
	return c, nil
}

// List returns the registered names (sorted).
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := append([]string(nil), m.order...)
	sort.Strings(names)
	return names
}

// HealthCheckAll pings every registered client concurrently.
// 使用 ants 池执行并行健康检查，池满时降级为直接创建 goroutine
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, client := range m.clients {
		clients[name] = client
	}
	m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(clients))
	var statusMu sync.Mutex
	var wg sync.WaitGroup

	for name, client := range clients {
		wg.Add(1)
		n, c := name, client
		task := func() {
			defer wg.Done()

			start := time.Now()
			err := c.Ping(ctx)
			status := HealthStatus{Name: n, Healthy: err == nil, Latency: time.Since(start), Error: err}

			statusMu.Lock()
			statuses[n] = status
			statusMu.Unlock()
		}

		if m.pool == nil || m.pool.Submit(task) != nil {
			go task()
		}
	}

	wg.Wait()
	return statuses
}

// CloseAll closes every client, last registered first, and forgets them.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil {
			logger.Warnw("failed to close storage client", "name", name, "error", err.Error())
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(m.clients, name)
	}
	m.order = nil
	return errors.Join(errs...)
}

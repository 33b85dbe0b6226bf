// Package server 管理服务内长期运行的组件（HTTP 服务、文档目录监听），
// 统一启动与优雅关闭。
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Runnable 可被 Manager 托管的组件。Start 不得阻塞。
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts runnables in registration order and stops them in reverse.
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	started []Runnable
}

// NewManager creates a new server manager.
func NewManager(shutdownTimeout time.Duration) *Manager {
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer adds a runnable to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. When one fails, the ones already started are
// stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}

	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			stopErr := m.stopLocked(ctx)
			return errors.Join(fmt.Errorf("failed to start server %s: %w", s.Name(), err), stopErr)
		}
		m.started = append(m.started, s)
		logger.Infow("Server started", "name", s.Name())
	}
	return nil
}

// Stop stops every started server in reverse start order.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", s.Name())
	}
	m.started = nil
	return errors.Join(errs...)
}

// Run starts all servers, blocks until ctx is cancelled and then stops them
// within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}

package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Manager 持有进程内的所有池，启动时注册，退出时统一释放。
type Manager struct {
	mu     sync.Mutex
	pools  map[Kind]*Pool
	order  []Kind
	closed bool
}

func NewManager() *Manager {
	return &Manager{pools: make(map[Kind]*Pool)}
}

// RegisterType 按默认参数创建某类池，每类只能注册一次。
func (m *Manager) RegisterType(kind Kind) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	if _, ok := m.pools[kind]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyExists, kind)
	}

	p, err := NewPool(string(kind), kind, nil)
	if err != nil {
		return nil, err
	}
	m.pools[kind] = p
	m.order = append(m.order, kind)
	return p, nil
}

// ReleaseAllTimeout 按注册的逆序释放所有池，每个池最多等待 timeout。
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.pools[m.order[i]]
		if err := p.ReleaseTimeout(timeout); err != nil {
			errs = append(errs, fmt.Errorf("pool %s: %w", p.Name(), err))
			continue
		}
		if n := p.Rejected(); n > 0 {
			logger.Infow("worker pool released", "pool", p.Name(), "rejected", n, "panics", p.Panics())
		}
	}
	return errors.Join(errs...)
}

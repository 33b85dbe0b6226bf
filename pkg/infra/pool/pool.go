// Package pool 提供基于 ants 的有界 goroutine 池。
//
// 服务只使用两类池：存储健康检查并发探测，以及查询日志等尽力而为的后台写入。
// 池满时提交直接失败，调用方自行决定降级方式。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	ErrPoolClosed        = errors.New("pool: closed")
	ErrPoolOverload      = errors.New("pool: overloaded")
	ErrPoolAlreadyExists = errors.New("pool: already registered")
)

// Kind 池用途。
type Kind string

const (
	HealthCheckPool Kind = "health-check"
	BackgroundPool  Kind = "background"
)

// Config 池参数。
type Config struct {
	// Size 最大并发 goroutine 数
	Size int
	// IdleTimeout 空闲 worker 回收时间
	IdleTimeout time.Duration
	// QueueLimit 阻塞提交时允许排队的任务数，0 表示提交从不阻塞
	QueueLimit int
}

// ConfigFor 返回某类池的默认参数。
func ConfigFor(kind Kind) Config {
	switch kind {
	case HealthCheckPool:
		// 每个存储一个探测，规模很小
		return Config{Size: 16, IdleTimeout: 30 * time.Second}
	default:
		return Config{Size: 32, IdleTimeout: time.Minute}
	}
}

// Pool 命名的 ants 池，记录拒绝与 panic 次数。
type Pool struct {
	name string
	kind Kind
	ants *ants.Pool

	closeOnce sync.Once
	closed    atomic.Bool
	rejected  atomic.Int64
	panics    atomic.Int64
}

// NewPool 创建池，cfg 为 nil 时使用 ConfigFor(kind)。
func NewPool(name string, kind Kind, cfg *Config) (*Pool, error) {
	c := ConfigFor(kind)
	if cfg != nil {
		c = *cfg
	}
	if c.Size <= 0 {
		return nil, fmt.Errorf("pool %s: size must be positive, got %d", name, c.Size)
	}

	p := &Pool{name: name, kind: kind}
	ap, err := ants.NewPool(c.Size,
		ants.WithExpiryDuration(c.IdleTimeout),
		ants.WithNonblocking(c.QueueLimit == 0),
		ants.WithMaxBlockingTasks(c.QueueLimit),
		ants.WithPanicHandler(p.onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	p.ants = ap

	logger.Debugw("worker pool ready", "pool", name, "kind", string(kind), "size", c.Size)
	return p, nil
}

func (p *Pool) onPanic(v any) {
	p.panics.Add(1)
	logger.Errorw("worker task panicked", "pool", p.name, "panic", v)
}

// Name 池名称。
func (p *Pool) Name() string { return p.name }

// Kind 池用途。
func (p *Pool) Kind() Kind { return p.kind }

// Running 正在执行任务的 worker 数。
func (p *Pool) Running() int { return p.ants.Running() }

// Rejected 因池满被拒绝的任务数。
func (p *Pool) Rejected() int64 { return p.rejected.Load() }

// Panics 发生 panic 的任务数。
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Submit 提交任务。池满返回 ErrPoolOverload，已关闭返回 ErrPoolClosed。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	err := p.ants.Submit(task)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// SubmitWithContext 提交任务，ctx 在任务开始前结束则跳过执行。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release 立即关闭池，不等待运行中的任务。
func (p *Pool) Release() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.ants.Release()
	})
}

// ReleaseTimeout 关闭池并最多等待 timeout 让运行中的任务结束。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		err = p.ants.ReleaseTimeout(timeout)
	})
	return err
}

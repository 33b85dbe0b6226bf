// Package resilience 为外部调用提供有界指数退避重试与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 总尝试次数（含首次），小于 1 按 1 处理。
	MaxAttempts int
	// InitialDelay 第一次重试前的等待时间。
	InitialDelay time.Duration
	// MaxDelay 单次等待上限，0 表示不设上限。
	MaxDelay time.Duration
	// Multiplier 每次等待后的放大倍数。
	Multiplier float64
	// RetryableErrors 判断错误是否值得重试，nil 表示全部重试。
	RetryableErrors func(error) bool
	// OnRetry 每次等待前回调，attempt 为刚失败的尝试序号。
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryUnlessAborted 上下文取消、超时与熔断拒绝不重试，其余错误都重试。
func RetryUnlessAborted(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrCircuitBreakerOpen):
		return false
	default:
		return true
	}
}

// backoff 计算下一次等待时间。
type backoff struct {
	next       time.Duration
	max        time.Duration
	multiplier float64
}

func (b *backoff) delay() time.Duration {
	d := b.next
	if b.max > 0 && d > b.max {
		d = b.max
	}
	grown := time.Duration(float64(b.next) * b.multiplier)
	if grown > b.next {
		b.next = grown
	}
	return d
}

// RetryWithBackoff 执行 fn，失败且可重试时按指数退避再次执行。
// 次数耗尽时返回的错误包装最后一次失败；等待期间 ctx 结束则返回 ctx.Err()。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := max(config.MaxAttempts, 1)
	bo := &backoff{next: config.InitialDelay, max: config.MaxDelay, multiplier: config.Multiplier}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := bo.delay()
		if config.OnRetry != nil {
			config.OnRetry(attempt, wait, err)
		}
		logger.Debugw("retry scheduled", "attempt", attempt, "delay", wait, "error", err.Error())

		if werr := sleep(ctx, wait); werr != nil {
			return werr
		}
	}

	logger.Warnw("retry attempts exhausted", "attempts", attempts, "error", err.Error())
	return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, err)
}

// RetryWithCircuitBreaker 每次尝试都经过熔断器；熔断拒绝是否终止重试由 RetryableErrors 决定。
func RetryWithCircuitBreaker(ctx context.Context, retryConfig *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return RetryWithBackoff(ctx, retryConfig, func() error {
		return cb.Execute(fn)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

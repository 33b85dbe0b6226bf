package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen 熔断器处于打开状态，调用被直接拒绝。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败达到该次数后打开熔断器。
	MaxFailures int
	// Timeout 打开后经过该时长进入半开状态。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态下允许放行的探测调用数。
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[CircuitBreakerState]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s CircuitBreakerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CircuitBreaker 连续失败计数熔断器，可被多个 goroutine 共享。
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitBreakerState
	failures int
	openedAt time.Time
	probes   int
}

// NewCircuitBreaker 创建熔断器，config 为 nil 时使用默认配置。
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cfg := *config
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute 在熔断器保护下执行 fn。
// 熔断器打开时不调用 fn，直接返回 ErrCircuitBreakerOpen。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitBreakerOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return false
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMaxCalls {
			return false
		}
		cb.probes++
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.moveTo(StateClosed)
		}
		return
	}

	cb.failures++
	// 半开探测失败立即重新打开
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
		cb.openedAt = cb.now()
		cb.moveTo(StateOpen)
	}
}

// moveTo 切换状态，调用方需持有锁。
func (cb *CircuitBreaker) moveTo(next CircuitBreakerState) {
	if cb.state == next {
		return
	}
	logw := logger.Infow
	if next == StateOpen {
		logw = logger.Warnw
	}
	logw("circuit breaker state changed",
		"from", cb.state.String(),
		"to", next.String(),
		"failures", cb.failures,
	)
	cb.state = next
	cb.probes = 0
}

package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrConfiguration 配置类错误的根哨兵，调用方通过 errors.Is 判断。
	ErrConfiguration = errors.New("configuration error")

	// ErrProviderNotFound 供应商未注册。
	ErrProviderNotFound = fmt.Errorf("%w: provider not found", ErrConfiguration)

	// ErrProviderNotConfigured 供应商已注册但缺少凭据。
	ErrProviderNotConfigured = fmt.Errorf("%w: provider not configured", ErrConfiguration)
)

// ProviderDescriptor 描述一个已注册的生成供应商。
type ProviderDescriptor struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model"`
	IsConfigured bool   `json:"is_configured"`
	Active       bool   `json:"active"`
}

// Registry 保存按名称注册的生成供应商以及当前选中的供应商。
// 注册表是显式传递的值，不依赖包级全局状态。
type Registry struct {
	mu        sync.RWMutex
	providers map[string]GenerationProvider
	active    string
}

// NewRegistry 创建空的生成供应商注册表。
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]GenerationProvider),
	}
}

// Register 按名称注册供应商，同名后注册者覆盖先注册者。
func (r *Registry) Register(p GenerationProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Select 切换当前供应商。失败时当前选择保持不变。
func (r *Registry) Select(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	if !p.IsConfigured() {
		return fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}

	r.active = name
	return nil
}

// Active 返回当前选中的供应商。
func (r *Registry) Active() (GenerationProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return nil, false
	}
	p, ok := r.providers[r.active]
	return p, ok
}

// ActiveName 返回当前选中的供应商名称，未选择时为空。
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Get 按名称查找供应商。
func (r *Registry) Get(name string) (GenerationProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// AvailableProviders 返回已配置供应商的名称（已排序）。
func (r *Registry) AvailableProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name, p := range r.providers {
		if p.IsConfigured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllProviders 返回所有已注册供应商的名称（已排序）。
func (r *Registry) AllProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors 返回所有供应商的描述，按名称排序。
func (r *Registry) Descriptors() []ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderDescriptor, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, ProviderDescriptor{
			Name:         name,
			DefaultModel: p.DefaultModel(),
			IsConfigured: p.IsConfigured(),
			Active:       name == r.active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

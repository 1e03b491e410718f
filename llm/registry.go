package llm

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/BaSui01/schemaforge/types"
)

// Registry 按名称索引的 provider 集合，并发安全。
// 第一个注册的 provider 为默认，可用 SetDefault 改写。
type Registry struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register 同名覆盖
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// SetDefault name 必须已注册
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.defaultProvider = name
	return nil
}

// Default 未注册任何 provider 时为空串
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultProvider
}

// List 返回排序后的名称
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Resolve 把 "provider:model" 解析为 provider 与上游模型名，
// 不带前缀的模型名交给默认 provider
func (r *Registry) Resolve(id string) (Provider, ModelID, error) {
	mid, err := ParseModelID(id)
	if err != nil {
		return nil, ModelID{}, types.NewInvalidRequestError(err.Error())
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if mid.Provider == "" {
		mid.Provider = r.defaultProvider
	}
	p, ok := r.providers[mid.Provider]
	if !ok {
		return nil, ModelID{}, types.NewError(types.ErrModelNotFound,
			fmt.Sprintf("no provider registered for model %q", id))
	}
	return p, mid, nil
}

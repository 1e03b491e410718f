package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/schemaforge/types"
)

// ModelStore 生成模型的持久化接口
type ModelStore interface {
	// Upsert 按 Name 插入或覆盖
	Upsert(ctx context.Context, m *GeneratedModel) error
	// Get 不存在时返回 MODEL_NOT_FOUND 错误
	Get(ctx context.Context, name string) (*GeneratedModel, error)
	// List 按名称排序返回全部模型
	List(ctx context.Context) ([]*GeneratedModel, error)
	Delete(ctx context.Context, name string) error
}

func notFound(name string) error {
	return types.NewError(types.ErrModelNotFound, fmt.Sprintf("model %q not found", name)).
		WithHTTPStatus(types.DefaultHTTPStatus(types.ErrModelNotFound))
}

// MemoryStore 进程内实现
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]*GeneratedModel
	now    func() time.Time
}

var _ ModelStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]*GeneratedModel), now: time.Now}
}

func (s *MemoryStore) Upsert(_ context.Context, m *GeneratedModel) error {
	if m == nil || m.Name == "" {
		return types.NewInvalidRequestError("model name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	cp := *m
	if existing, ok := s.models[m.Name]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.ID = uint(len(s.models) + 1)
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.models[m.Name] = &cp

	m.ID, m.CreatedAt, m.UpdatedAt = cp.ID, cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (*GeneratedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	if !ok {
		return nil, notFound(name)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*GeneratedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*GeneratedModel, 0, len(s.models))
	for _, m := range s.models {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[name]; !ok {
		return notFound(name)
	}
	delete(s.models, name)
	return nil
}

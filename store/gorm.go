package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/schemaforge/types"
)

// GormStore 基于 GORM 的实现
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ ModelStore = (*GormStore)(nil)

// NewGormStore 创建 GORM 存储，调用方负责先执行 Migrate
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger.With(zap.String("component", "model_store"))}
}

// Migrate 自动迁移表结构
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&GeneratedModel{}); err != nil {
		return fmt.Errorf("migrate generated_models: %w", err)
	}
	return nil
}

func storageError(op string, err error) error {
	return types.NewError(types.ErrStorageFailure, op+" failed").
		WithHTTPStatus(500).
		WithCause(err)
}

func (s *GormStore) Upsert(ctx context.Context, m *GeneratedModel) error {
	if m == nil || m.Name == "" {
		return types.NewInvalidRequestError("model name is required")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "main_model", "schemas", "code", "llm_model", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		s.logger.Error("upsert model failed", zap.String("name", m.Name), zap.Error(err))
		return storageError("upsert model", err)
	}
	s.logger.Debug("model stored", zap.String("name", m.Name))
	return nil
}

func (s *GormStore) Get(ctx context.Context, name string) (*GeneratedModel, error) {
	var m GeneratedModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, storageError("get model", err)
	}
	return &m, nil
}

func (s *GormStore) List(ctx context.Context) ([]*GeneratedModel, error) {
	var out []*GeneratedModel
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, storageError("list models", err)
	}
	return out, nil
}

func (s *GormStore) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&GeneratedModel{})
	if res.Error != nil {
		return storageError("delete model", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(name)
	}
	return nil
}

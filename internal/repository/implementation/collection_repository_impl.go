package implementation

import (
	"context"
	"errors"
	"time"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/mapper"
	"ai-knowledgebase-be/internal/model"
	"ai-knowledgebase-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CollectionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CollectionMapper
}

func NewCollectionRepository(db *gorm.DB) contract.CollectionRepository {
	return &CollectionRepositoryImpl{
		db:     db,
		mapper: mapper.NewCollectionMapper(),
	}
}

func (r *CollectionRepositoryImpl) Upsert(ctx context.Context, name string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": now}),
		}).
		Create(&model.Collection{Name: name, CreatedAt: now, UpdatedAt: now}).Error
}

func (r *CollectionRepositoryImpl) listQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("collections").
		Select("collections.*, COUNT(child_chunks.id) AS chunk_count").
		Joins("LEFT JOIN child_chunks ON child_chunks.collection = collections.name").
		Group("collections.name")
}

func (r *CollectionRepositoryImpl) FindAll(ctx context.Context) ([]*entity.Collection, error) {
	var rows []*model.CollectionWithCount
	if err := r.listQuery(ctx).Order("collections.name ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	collections := make([]*entity.Collection, len(rows))
	for i, row := range rows {
		collections[i] = r.mapper.ToEntity(row)
	}
	return collections, nil
}

func (r *CollectionRepositoryImpl) FindOne(ctx context.Context, name string) (*entity.Collection, error) {
	var row model.CollectionWithCount
	err := r.listQuery(ctx).Where("collections.name = ?", name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&row), nil
}

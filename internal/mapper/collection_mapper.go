package mapper

import (
	"time"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/model"
)

type CollectionMapper struct{}

func NewCollectionMapper() *CollectionMapper {
	return &CollectionMapper{}
}

func (m *CollectionMapper) ToEntity(c *model.CollectionWithCount) *entity.Collection {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Collection{
		Name:       c.Name,
		ChunkCount: c.ChunkCount,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

package mapper

import (
	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChildChunkMapper struct{}

func NewChildChunkMapper() *ChildChunkMapper {
	return &ChildChunkMapper{}
}

func (m *ChildChunkMapper) ToEntity(c *model.ChildChunk) *entity.ChildChunk {
	if c == nil {
		return nil
	}

	return &entity.ChildChunk{
		Id:             c.Id,
		Collection:     c.Collection,
		DocId:          c.DocId,
		Source:         c.Source,
		ContentType:    c.ContentType,
		Content:        c.Content,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		Metadata:       map[string]interface{}(c.Metadata),
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ChildChunkMapper) ToModel(c *entity.ChildChunk) *model.ChildChunk {
	if c == nil {
		return nil
	}

	return &model.ChildChunk{
		Id:             c.Id,
		Collection:     c.Collection,
		DocId:          c.DocId,
		Source:         c.Source,
		ContentType:    c.ContentType,
		Content:        c.Content,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		Metadata:       datatypes.JSONMap(c.Metadata),
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ChildChunkMapper) ToEntities(chunks []*model.ChildChunk) []*entity.ChildChunk {
	entities := make([]*entity.ChildChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ChildChunkMapper) ToModels(chunks []*entity.ChildChunk) []*model.ChildChunk {
	models := make([]*model.ChildChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}

func (m *ChildChunkMapper) RefToEntity(r *model.ChildChunkRef) *entity.ChildChunkRef {
	return &entity.ChildChunkRef{
		Id:          r.Id,
		DocId:       r.DocId,
		Source:      r.Source,
		ContentType: r.ContentType,
	}
}

package implementation

import (
	"context"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/mapper"
	"ai-knowledgebase-be/internal/model"
	"ai-knowledgebase-be/internal/repository/contract"
	"ai-knowledgebase-be/internal/repository/scope"
	"ai-knowledgebase-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const insertBatchSize = 200

type ChildChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChildChunkMapper
}

func NewChildChunkRepository(db *gorm.DB) contract.ChildChunkRepository {
	return &ChildChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewChildChunkMapper(),
	}
}

func (r *ChildChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChildChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.ChildChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, insertBatchSize).Error; err != nil {
		return err
	}

	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ChildChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChildChunk, error) {
	var models []*model.ChildChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ChildChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChildChunk{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *ChildChunkRepositoryImpl) ListRefs(ctx context.Context, collection string) ([]*entity.ChildChunkRef, error) {
	var refs []*model.ChildChunkRef
	err := r.db.WithContext(ctx).
		Model(&model.ChildChunk{}).
		Select("id", "doc_id", "source", "content_type").
		Scopes(scope.InCollection(collection), scope.InInsertionOrder).
		Scan(&refs).Error
	if err != nil {
		return nil, err
	}

	entities := make([]*entity.ChildChunkRef, len(refs))
	for i, ref := range refs {
		entities[i] = r.mapper.RefToEntity(ref)
	}
	return entities, nil
}

func (r *ChildChunkRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.applySpecifications(r.db.WithContext(ctx), specification.ByIDs{IDs: ids}).Delete(&model.ChildChunk{})
	return res.RowsAffected, res.Error
}

func (r *ChildChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*contract.ScoredChildChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	// pgvector <=> is cosine distance, so similarity = 1 - distance
	type result struct {
		model.ChildChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("child_chunks").
		Select("child_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Scopes(scope.InCollection(collection)).
		Order(gorm.Expr("embedding_value <=> ?", queryVector)).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChildChunk, len(results))
	for i := range results {
		scored[i] = &contract.ScoredChildChunk{
			Chunk:      r.mapper.ToEntity(&results[i].ChildChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

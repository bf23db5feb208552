package contract

import (
	"context"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredChildChunk wraps ChildChunk with its cosine similarity to the query
type ScoredChildChunk struct {
	Chunk      *entity.ChildChunk
	Similarity float64 // 1.0 = identical
}

// ChildChunkRepository is the Vector Index.
type ChildChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.ChildChunk) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChildChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// ListRefs scans the collection without loading vectors or text
	ListRefs(ctx context.Context, collection string) ([]*entity.ChildChunkRef, error)
	// DeleteByIDs hard deletes and returns the number of rows removed
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*ScoredChildChunk, error)
}

package contract

import (
	"context"

	"ai-knowledgebase-be/internal/entity"
)

// ParentStore holds parent chunk text keyed by "<collection>:<doc_id>".
type ParentStore interface {
	MSet(ctx context.Context, collection string, parents []*entity.ParentChunk) error
	// MGet returns one entry per docId, nil where the key does not resolve
	MGet(ctx context.Context, collection string, docIds []string) ([]*entity.ParentChunk, error)
	Delete(ctx context.Context, collection string, docId string) error
	// DocIds lists every doc_id stored under collection
	DocIds(ctx context.Context, collection string) ([]string, error)
}

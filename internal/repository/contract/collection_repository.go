package contract

import (
	"context"

	"ai-knowledgebase-be/internal/entity"
)

type CollectionRepository interface {
	// Upsert creates the collection row if missing and bumps updated_at otherwise
	Upsert(ctx context.Context, name string) error
	FindAll(ctx context.Context) ([]*entity.Collection, error)
	FindOne(ctx context.Context, name string) (*entity.Collection, error)
}

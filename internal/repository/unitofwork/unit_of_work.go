package unitofwork

import (
	"context"

	"ai-knowledgebase-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChildChunkRepository() contract.ChildChunkRepository
	CollectionRepository() contract.CollectionRepository
}

// FILE: internal/service/ingestion_service.go
package service

import (
	"context"
	"fmt"

	"ai-knowledgebase-be/internal/entity"
	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/loader"
	"ai-knowledgebase-be/pkg/merge"
)

const ingestionModule = "ingestion"

type IIngestionService interface {
	// Ingest loads every document and indexes the whole batch with one call.
	// Any load failure aborts the batch before anything is written.
	Ingest(ctx context.Context, collection string, docs []*entity.IngestableDocument) (*entity.IndexResult, error)
}

type ingestionService struct {
	loader         *loader.Loader
	indexerService IIndexerService
	logger         logger.ILogger
}

func NewIngestionService(
	documentLoader *loader.Loader,
	indexerService IIndexerService,
	log logger.ILogger,
) IIngestionService {
	return &ingestionService{
		loader:         documentLoader,
		indexerService: indexerService,
		logger:         log,
	}
}

func (s *ingestionService) Ingest(ctx context.Context, collection string, docs []*entity.IngestableDocument) (*entity.IndexResult, error) {
	if len(docs) == 0 {
		return nil, entity.ErrNoFiles
	}

	var batch []entity.ParsedRecord
	for _, doc := range docs {
		records, err := s.loader.Load(ctx, doc)
		if err != nil {
			s.logger.Warn(ingestionModule, "Batch aborted by a document that failed to load", map[string]interface{}{
				"filename": doc.OriginalName,
				"error":    err.Error(),
			})
			return nil, fmt.Errorf("%s: %w", doc.OriginalName, err)
		}

		contentType := doc.ContentType
		if contentType == "" {
			contentType = merge.ResolveContentType(doc.OriginalName, doc.Content)
		}
		for i := range records {
			records[i].Metadata[entity.MetaSource] = doc.OriginalName
			records[i].Metadata[entity.MetaType] = contentType
		}
		batch = append(batch, records...)
	}

	return s.indexerService.Index(ctx, collection, batch)
}
